package gql

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Note is the demo document entity CRUD exercises — the spec is
// domain-agnostic and any entity respecting the same invariants would
// serve equally well.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	maxTitleLen   = 200
	maxContentLen = 10000
	maxAuthorLen  = 100
	maxTagLen     = 50
	maxTags       = 10
)

var safeAuthorPattern = regexp.MustCompile(`^[A-Za-z0-9 ._-]+$`)

// ValidateNoteInput checks title/content/author/tags against the fixed
// invariants: length bounds, a content script-injection guard, and a
// restricted author character set. It does not touch id/timestamps,
// which the store assigns.
func ValidateNoteInput(title, content, author string, tags []string) error {
	if title == "" || len(title) > maxTitleLen {
		return fmt.Errorf("title must be between 1 and %d characters", maxTitleLen)
	}
	if content == "" || len(content) > maxContentLen {
		return fmt.Errorf("content must be between 1 and %d characters", maxContentLen)
	}
	if strings.Contains(strings.ToLower(content), "<script") {
		return fmt.Errorf("content must not contain script tags")
	}
	if author == "" || len(author) > maxAuthorLen {
		return fmt.Errorf("author must be between 1 and %d characters", maxAuthorLen)
	}
	if !safeAuthorPattern.MatchString(author) {
		return fmt.Errorf("author contains unsupported characters")
	}
	if len(tags) > maxTags {
		return fmt.Errorf("at most %d tags are allowed", maxTags)
	}
	for _, tag := range tags {
		if tag == "" || len(tag) > maxTagLen {
			return fmt.Errorf("each tag must be between 1 and %d characters", maxTagLen)
		}
	}
	return nil
}

func (n *Note) toRawMessage() (json.RawMessage, error) {
	return json.Marshal(n)
}

func noteFromRawMessage(raw json.RawMessage) (*Note, error) {
	var n Note
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

const notesCollection = "notes"
