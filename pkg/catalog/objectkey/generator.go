package objectkey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for object key generation strategies.
// Every attached payload gets its own key, so replacing a content file never
// overwrites the previous object in place.
type Generator interface {
	// GenerateKey creates an object key for storage backends
	GenerateKey(contentID, payloadID uuid.UUID, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	FileName string
	// Hash is the lowercase hex SHA-256 of the payload
	Hash     string
	MimeType string
}

// LegacyGenerator groups payloads under their content record.
// Structure: contents/{contentID}/{payloadID}/{filename}
type LegacyGenerator struct{}

func NewLegacyGenerator() *LegacyGenerator {
	return &LegacyGenerator{}
}

func (g *LegacyGenerator) GenerateKey(contentID, payloadID uuid.UUID, metadata *KeyMetadata) string {
	if metadata != nil && metadata.FileName != "" {
		return fmt.Sprintf("contents/%s/%s/%s", contentID, payloadID, sanitizeFilename(metadata.FileName))
	}
	return fmt.Sprintf("contents/%s/%s", contentID, payloadID)
}

// GitLikeGenerator provides Git-style sharding on the payload hash.
// Structure: objects/ab/cd1234ef5678_{payloadID}_{filename}
// Payloads without a hash are sharded on the payload ID.
type GitLikeGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
	// PrefixLength controls how much of the hash follows the shard (default: 12)
	PrefixLength int
}

func NewGitLikeGenerator() *GitLikeGenerator {
	return &GitLikeGenerator{
		ShardLength:  2,
		PrefixLength: 12,
	}
}

func (g *GitLikeGenerator) GenerateKey(contentID, payloadID uuid.UUID, metadata *KeyMetadata) string {
	source := strings.ReplaceAll(payloadID.String(), "-", "")
	if metadata != nil && metadata.Hash != "" {
		source = strings.ToLower(metadata.Hash)
	}

	shard := g.ShardLength
	if shard <= 0 {
		shard = 2
	}
	if shard > len(source) {
		shard = len(source)
	}
	end := shard + g.PrefixLength
	if g.PrefixLength <= 0 || end > len(source) {
		end = len(source)
	}

	filename := fmt.Sprintf("%s_%s", source[shard:end], payloadID)
	if metadata != nil && metadata.FileName != "" {
		filename = fmt.Sprintf("%s_%s", filename, sanitizeFilename(metadata.FileName))
	}

	return fmt.Sprintf("objects/%s/%s", source[:shard], filename)
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(contentID, payloadID uuid.UUID, metadata *KeyMetadata) string
}

func NewCustomFuncGenerator(fn func(contentID, payloadID uuid.UUID, metadata *KeyMetadata) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(contentID, payloadID uuid.UUID, metadata *KeyMetadata) string {
	return g.GenerateFunc(contentID, payloadID, metadata)
}

func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}

// NewRecommendedGenerator returns the recommended generator for new installations
func NewRecommendedGenerator() Generator {
	return NewGitLikeGenerator()
}

// NewHighPerformanceGenerator returns a generator with wider sharding
func NewHighPerformanceGenerator() Generator {
	return &GitLikeGenerator{ShardLength: 3, PrefixLength: 12}
}

// ForStrategy maps a configured strategy name to a generator.
func ForStrategy(name string) (Generator, error) {
	switch strings.ToLower(name) {
	case "", "git-like", "gitlike", "recommended":
		return NewGitLikeGenerator(), nil
	case "legacy":
		return NewLegacyGenerator(), nil
	case "high-performance":
		return NewHighPerformanceGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown object key strategy: %s", name)
	}
}
