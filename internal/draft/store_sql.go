package draft

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLStore keeps drafts in a single table with the composite snapshot as a
// JSON blob, one row per (user, course). Works against sqlite and postgres;
// both drivers accept $n placeholders.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) Load(ctx context.Context, userID, courseID string) (Draft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, payload, updated_at FROM drafts WHERE user_id=$1 AND course_id=$2`,
		userID, courseID)
	return scanDraft(row, userID, courseID)
}

func (s *SQLStore) LoadLatest(ctx context.Context, userID string) (Draft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, payload, updated_at FROM drafts
		  WHERE user_id=$1
		  ORDER BY updated_at DESC
		  LIMIT 1`,
		userID)
	return scanDraft(row, userID, "")
}

type rowScanner interface{ Scan(dest ...any) error }

func scanDraft(row rowScanner, userID, courseID string) (Draft, error) {
	var (
		id        string
		payload   string
		updatedAt int64
	)
	if err := row.Scan(&id, &payload, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Draft{}, ErrNotFound
		}
		return Draft{}, fmt.Errorf("draft load: %w", err)
	}
	var d Draft
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return Draft{}, fmt.Errorf("draft decode: %w", err)
	}
	d.ID = id
	d.UserID = userID
	if courseID != "" {
		d.CourseID = courseID
	}
	if updatedAt > 0 {
		d.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	}
	return d, nil
}

func (s *SQLStore) Save(ctx context.Context, d Draft) error {
	if d.UserID == "" || d.CourseID == "" {
		return errors.New("draft save: user and course required")
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("draft encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, user_id, course_id, payload, updated_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (user_id, course_id) DO UPDATE
		   SET payload=EXCLUDED.payload, updated_at=EXCLUDED.updated_at`,
		d.ID, d.UserID, d.CourseID, string(payload), d.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("draft save: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, userID, courseID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM drafts WHERE user_id=$1 AND course_id=$2`, userID, courseID)
	if err != nil {
		return fmt.Errorf("draft delete: %w", err)
	}
	return nil
}
