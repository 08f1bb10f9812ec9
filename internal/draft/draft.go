// Package draft persists work-in-progress test compositions and reconciles
// them with the composer session: load the freshest draft on course entry,
// autosave on change and on a heartbeat, delete on commit or discard.
package draft

import (
	"context"
	"errors"
	"time"

	"github.com/mind-engage/testcraft/internal/compose"
)

// ErrNotFound is returned by stores when no draft exists for the key. A fresh
// course session treats it as a normal state, not a failure.
var ErrNotFound = errors.New("draft not found")

// Draft is the persisted snapshot of an in-progress composition. One live
// draft per (user, course) is meaningful; the store upserts on that key and
// Load always resolves to the most recently updated record.
type Draft struct {
	ID           string                      `json:"id,omitempty"`
	UserID       string                      `json:"user_id"`
	CourseID     string                      `json:"course_id"`
	Config       compose.TestConfig          `json:"config"`
	Selection    []string                    `json:"selection"`
	DisplayOrder []string                    `json:"display_order,omitempty"`
	Overrides    map[string]compose.Override `json:"overrides,omitempty"`
	FilterState  compose.Filter              `json:"filter_state"`
	Pager        compose.Pager               `json:"pager"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// Empty reports whether the draft carries nothing worth persisting. The
// heartbeat save skips empty drafts so abandoned sessions do not litter the
// store.
func (d Draft) Empty() bool {
	return d.Config.Title == "" && len(d.Selection) == 0 && len(d.Overrides) == 0
}

// Store is the persistence contract. The SQL store is the production
// implementation; tests use in-memory fakes.
type Store interface {
	// Load returns the draft for (userID, courseID) or ErrNotFound.
	Load(ctx context.Context, userID, courseID string) (Draft, error)
	// LoadLatest returns the user's most recently updated draft across all
	// courses, or ErrNotFound. Drafts without a timestamp sort last.
	LoadLatest(ctx context.Context, userID string) (Draft, error)
	// Save upserts by (userID, courseID).
	Save(ctx context.Context, d Draft) error
	// Delete removes the draft for (userID, courseID). Deleting a missing
	// draft is not an error.
	Delete(ctx context.Context, userID, courseID string) error
}
