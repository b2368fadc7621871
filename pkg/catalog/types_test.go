package catalog

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_CreatedByName(t *testing.T) {
	c := &Content{}
	assert.Equal(t, "", c.CreatedByName())

	id := uuid.New()
	c.CreatedBy = &id
	c.Creator = &User{ID: id, Username: "curator"}
	assert.Equal(t, "curator", c.CreatedByName())

	c.CreatedBy = nil
	assert.Equal(t, "", c.CreatedByName())
}

func TestContent_PublishedYear(t *testing.T) {
	c := &Content{}
	assert.Nil(t, c.PublishedYear())

	d, err := ParseDate("1987-03-09")
	require.NoError(t, err)
	c.PublishedDate = &d
	require.NotNil(t, c.PublishedYear())
	assert.Equal(t, "1987", *c.PublishedYear())

	early, err := ParseDate("0042-01-01")
	require.NoError(t, err)
	c.PublishedDate = &early
	assert.Equal(t, "0042", *c.PublishedYear())
}

func TestDate_JSON(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)

	b, err := json.Marshal(struct {
		On   *Date `json:"on"`
		Miss *Date `json:"miss"`
	}{On: &d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"on":"2024-02-29","miss":null}`, string(b))

	var out struct {
		On Date `json:"on"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"on":"1999-12-31"}`), &out))
	assert.Equal(t, "1999-12-31", out.On.String())

	assert.Error(t, json.Unmarshal([]byte(`{"on":"31/12/1999"}`), &out))
}

func TestMetadata_Info(t *testing.T) {
	m := &Metadata{ID: uuid.New(), Name: "Boston", TypeID: uuid.New(), TypeName: "Location"}
	info := m.Info()
	assert.Equal(t, m.ID, info.ID)
	assert.Equal(t, "Location", info.TypeName)
	assert.Equal(t, m.TypeID, info.Type)
	assert.Equal(t, "[Location]Boston", m.String())
}

func TestWorkflowStatus(t *testing.T) {
	for _, s := range WorkflowStatuses() {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, WorkflowStatus("Published").IsValid())

	s, err := ParseWorkflowStatus("")
	require.NoError(t, err)
	assert.Equal(t, StatusReview, s)

	_, err = ParseWorkflowStatus("review")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestFieldErrors(t *testing.T) {
	fields := FieldErrors(DuplicateFileNameError())
	assert.Equal(t, []string{"content with this file name already exists."}, fields["file_name"])

	fields = FieldErrors(&ContentError{Op: "create", Err: ErrTitleRequired})
	assert.Equal(t, []string{"title is required"}, fields["title"])
}
