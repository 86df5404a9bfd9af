package content

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Category classifies a link by medium or purpose.
type Category string

const (
	// CategoryReading marks articles, books and other text.
	CategoryReading Category = "reading"
	// CategoryVideo marks recorded talks and videos.
	CategoryVideo Category = "video"
	// CategoryAudio marks audio lectures.
	CategoryAudio Category = "audio"
	// CategoryGuided marks guided meditations.
	CategoryGuided Category = "guided"
	// CategoryPodcast marks podcast episodes.
	CategoryPodcast Category = "podcast"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidLinkID indicates that a link identifier is empty or exceeds storage bounds.
	ErrInvalidLinkID = errors.New("content: invalid link id")
	// ErrInvalidLink indicates that link fields failed validation.
	ErrInvalidLink = errors.New("content: invalid link")
	// ErrLinkNotFound indicates that no link carries the requested identifier.
	ErrLinkNotFound = errors.New("content: link not found")
	// ErrProgressNotFound indicates that no progress entry exists for the requested link.
	ErrProgressNotFound = errors.New("content: progress entry not found")
)

// Categories lists every supported category in display order.
func Categories() []Category {
	return []Category{CategoryReading, CategoryVideo, CategoryAudio, CategoryGuided, CategoryPodcast}
}

// LinkID represents a validated link identifier.
type LinkID string

// NewLinkID validates raw input and returns a LinkID.
func NewLinkID(rawInput string) (LinkID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidLinkID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidLinkID, maxIdentifierLength)
	}
	return LinkID(trimmed), nil
}

// String returns the underlying string identifier.
func (id LinkID) String() string {
	return string(id)
}

// Link is a curated resource record.
type Link struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url"`
}

// ProgressEntry marks a link as completed at a point in time.
type ProgressEntry struct {
	LinkID      string    `json:"linkId"`
	CompletedAt time.Time `json:"completedAt"`
	Notes       string    `json:"notes,omitempty"`
}

// Document is the unit of persistence holding every link and progress entry.
type Document struct {
	Links    []Link          `json:"links"`
	Progress []ProgressEntry `json:"progress"`
}

// NewDocument returns a document with empty collections.
func NewDocument() Document {
	return Document{Links: []Link{}, Progress: []ProgressEntry{}}
}

// Normalize fills missing collections and collapses duplicate progress entries,
// keeping the last entry recorded for each link.
func (d *Document) Normalize() {
	if d.Links == nil {
		d.Links = []Link{}
	}
	if d.Progress == nil {
		d.Progress = []ProgressEntry{}
		return
	}
	lastIndex := make(map[string]int, len(d.Progress))
	for index, entry := range d.Progress {
		lastIndex[entry.LinkID] = index
	}
	if len(lastIndex) == len(d.Progress) {
		return
	}
	deduplicated := make([]ProgressEntry, 0, len(lastIndex))
	for index, entry := range d.Progress {
		if lastIndex[entry.LinkID] == index {
			deduplicated = append(deduplicated, entry)
		}
	}
	d.Progress = deduplicated
}

func (d *Document) linkIndex(id LinkID) int {
	for index, link := range d.Links {
		if link.ID == id.String() {
			return index
		}
	}
	return -1
}

// removeProgress drops every progress entry for the link and reports how many were removed.
func (d *Document) removeProgress(linkID string) int {
	kept := d.Progress[:0]
	for _, entry := range d.Progress {
		if entry.LinkID != linkID {
			kept = append(kept, entry)
		}
	}
	removed := len(d.Progress) - len(kept)
	d.Progress = kept
	return removed
}

var linkValidator = validator.New(validator.WithRequiredStructEnabled())

// LinkDraft carries the caller-supplied fields of a new link.
type LinkDraft struct {
	Category    Category `validate:"required,oneof=reading video audio guided podcast"`
	Title       string   `validate:"required"`
	Description string
	URL         string `validate:"required"`
}

func (draft LinkDraft) normalized() LinkDraft {
	return LinkDraft{
		Category:    Category(strings.ToLower(strings.TrimSpace(string(draft.Category)))),
		Title:       strings.TrimSpace(draft.Title),
		Description: strings.TrimSpace(draft.Description),
		URL:         strings.TrimSpace(draft.URL),
	}
}

// Validate reports the first failing field wrapped in ErrInvalidLink.
func (draft LinkDraft) Validate() error {
	if err := linkValidator.Struct(draft.normalized()); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			return fmt.Errorf("%w: %s failed %s", ErrInvalidLink, strings.ToLower(fieldErrors[0].Field()), fieldErrors[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	return nil
}

// LinkPatch carries the fields of a partial update. Nil fields are left untouched.
type LinkPatch struct {
	Category    *Category
	Title       *string
	Description *string
	URL         *string
}

// Empty reports whether the patch changes nothing.
func (patch LinkPatch) Empty() bool {
	return patch.Category == nil && patch.Title == nil && patch.Description == nil && patch.URL == nil
}

// apply merges the patch over link and validates the result.
func (patch LinkPatch) apply(link Link) (Link, error) {
	draft := LinkDraft{
		Category:    link.Category,
		Title:       link.Title,
		Description: link.Description,
		URL:         link.URL,
	}
	if patch.Category != nil {
		draft.Category = *patch.Category
	}
	if patch.Title != nil {
		draft.Title = *patch.Title
	}
	if patch.Description != nil {
		draft.Description = *patch.Description
	}
	if patch.URL != nil {
		draft.URL = *patch.URL
	}
	if err := draft.Validate(); err != nil {
		return Link{}, err
	}
	normalized := draft.normalized()
	return Link{
		ID:          link.ID,
		Category:    normalized.Category,
		Title:       normalized.Title,
		Description: normalized.Description,
		URL:         normalized.URL,
	}, nil
}

// ProgressStats summarizes completion over a set of links.
type ProgressStats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Percentage int `json:"percentage"`
}

func computeStats(links []Link, progress []ProgressEntry) ProgressStats {
	completedLinks := make(map[string]struct{}, len(progress))
	for _, entry := range progress {
		completedLinks[entry.LinkID] = struct{}{}
	}
	stats := ProgressStats{Total: len(links)}
	for _, link := range links {
		if _, ok := completedLinks[link.ID]; ok {
			stats.Completed++
		}
	}
	if stats.Total > 0 {
		stats.Percentage = (stats.Completed*100 + stats.Total/2) / stats.Total
	}
	return stats
}
