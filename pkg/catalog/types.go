package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// Date is a calendar day. It marshals as "YYYY-MM-DD".
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current day.
func Today() *Date {
	d := NewDate(time.Now())
	return &d
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return NewDate(t), nil
}

// DateFromTime converts a nullable timestamp read from storage.
func DateFromTime(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	d := NewDate(*t)
	return &d
}

// TimePtr converts a nullable Date for storage.
func (d *Date) TimePtr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// User is the identity a Content record is attributed to.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile extends a User with derived catalog data.
type Profile struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user"`
	ContentCount int64     `json:"content_count"`
}

// MetadataType is a named category of tags, e.g. "Subject" or "Location".
type MetadataType struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Metadata is a (type, name) tag that can be attached to Content.
// TypeName is filled in on reads.
type Metadata struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	TypeID   uuid.UUID `json:"type"`
	TypeName string    `json:"type_name,omitempty"`
}

// MetadataInfo is the flattened form of a tag used in content listings.
type MetadataInfo struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	TypeName string    `json:"type_name"`
	Type     uuid.UUID `json:"type"`
}

// Info flattens the tag.
func (m *Metadata) Info() MetadataInfo {
	return MetadataInfo{
		ID:       m.ID,
		Name:     m.Name,
		TypeName: m.TypeName,
		Type:     m.TypeID,
	}
}

func (m *Metadata) String() string {
	return fmt.Sprintf("[%s]%s", m.TypeName, m.Name)
}

// Content is a cataloged digital asset.
//
// FileName, FileSize, Hash, ContentFile and MimeType describe the attached
// payload and only change when a new payload is attached. FileSize is kept
// as a float for wire compatibility; it always holds a whole byte count.
type Content struct {
	ID uuid.UUID `json:"id"`

	// File payload
	ContentFile    string   `json:"content_file"`
	StorageBackend string   `json:"storage_backend,omitempty"`
	FileName       string   `json:"file_name"`
	FileSize       *float64 `json:"filesize"`
	Hash           string   `json:"hash"`
	MimeType       string   `json:"mime_type,omitempty"`

	// Descriptive
	Title           string `json:"title"`
	Description     string `json:"description"`
	CopyrightNotes  string `json:"copyright_notes"`
	RightsStatement string `json:"rights_statement"`
	AdditionalNotes string `json:"additional_notes"`
	OriginalSource  string `json:"original_source"`

	// Classification
	MetadataIDs []uuid.UUID `json:"metadata"`

	// Provenance and workflow
	CreatedBy  *uuid.UUID     `json:"created_by"`
	CreatedOn  *Date          `json:"created_on"`
	ModifiedBy string         `json:"modified_by"`
	ModifiedOn *Date          `json:"modified_on"`
	ReviewedBy string         `json:"reviewed_by"`
	ReviewedOn *Date          `json:"reviewed_on"`
	Status     WorkflowStatus `json:"status"`

	// Copyright
	CopyrightApproved bool   `json:"copyright_approved"`
	CopyrightBy       string `json:"copyright_by"`
	CopyrightOn       *Date  `json:"copyright_on"`
	CopyrightSite     string `json:"copyright_site"`

	// Publication
	PublishedDate *Date `json:"published_date"`
	Active        bool  `json:"active"`

	// Creator is populated by repositories on reads when CreatedBy is set.
	Creator *User `json:"-"`
}

// CreatedByName returns the creator's username, or "" when there is none.
func (c *Content) CreatedByName() string {
	if c.CreatedBy == nil || c.Creator == nil {
		return ""
	}
	return c.Creator.Username
}

// PublishedYear returns the 4-digit year of PublishedDate, or nil.
func (c *Content) PublishedYear() *string {
	if c.PublishedDate == nil {
		return nil
	}
	year := fmt.Sprintf("%04d", c.PublishedDate.Year())
	return &year
}

// HasFile reports whether a payload has ever been attached.
func (c *Content) HasFile() bool {
	return c.ContentFile != ""
}

// ContentFilters narrows ListContent and CountContent.
type ContentFilters struct {
	// Search matches title or description, case-insensitively.
	Search    string
	Statuses  []WorkflowStatus
	Active    *bool
	CreatedBy *uuid.UUID
	// MetadataIDs requires content to carry every listed tag.
	MetadataIDs []uuid.UUID
	// PublishedFrom and PublishedTo bound the published year, inclusive.
	PublishedFrom *int
	PublishedTo   *int
	Limit         int
	Offset        int
}

// Matches reports whether c satisfies every filter except pagination.
// Memory repositories use it directly; SQL repositories mirror it in queries.
func (f ContentFilters) Matches(c *Content) bool {
	if f.Search != "" && !containsFold(c.Title, f.Search) && !containsFold(c.Description, f.Search) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if c.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Active != nil && c.Active != *f.Active {
		return false
	}
	if f.CreatedBy != nil && (c.CreatedBy == nil || *c.CreatedBy != *f.CreatedBy) {
		return false
	}
	for _, want := range f.MetadataIDs {
		found := false
		for _, have := range c.MetadataIDs {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.PublishedFrom != nil || f.PublishedTo != nil {
		if c.PublishedDate == nil {
			return false
		}
		year := c.PublishedDate.Year()
		if f.PublishedFrom != nil && year < *f.PublishedFrom {
			return false
		}
		if f.PublishedTo != nil && year > *f.PublishedTo {
			return false
		}
	}
	return true
}

// ParseYear parses a 4-digit year filter value.
func ParseYear(s string) (*int, error) {
	year, err := strconv.Atoi(s)
	if err != nil || year < 0 || year > 9999 {
		return nil, fmt.Errorf("invalid year %q", s)
	}
	return &year, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
