package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/activity"
	xlog "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/log"
)

var ErrNotInitialized = errors.New("database not initialized")

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Repository is a thin wrapper around *sql.DB intended for dependency injection.
type Repository struct {
	DB     *sql.DB
	logger zerolog.Logger
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db, logger: xlog.WithComponent("db")}
}

// InsertActivity stores an entry. Re-delivered entries are ignored.
func (r *Repository) InsertActivity(ctx context.Context, e activity.Entry) error {
	if r == nil || r.DB == nil {
		return ErrNotInitialized
	}
	query := `
		INSERT INTO activity_log (id, collaborator, method, request, response, error, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.DB.ExecContext(ctx, query,
		e.ID,
		e.Collaborator,
		e.Method,
		nullJSON(e.Request),
		nullJSON(e.Response),
		sql.NullString{String: e.Error, Valid: e.Error != ""},
		e.StartedAt,
		e.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity %s: %w", e.ID, err)
	}
	r.logger.Debug().Str("activity_id", e.ID).Str(xlog.FieldMethod, e.Method).Msg("inserted activity")
	return nil
}

// ListActivity returns the most recent entries, oldest first.
func (r *Repository) ListActivity(ctx context.Context, limit int) ([]activity.Entry, error) {
	if r == nil || r.DB == nil {
		return nil, ErrNotInitialized
	}
	limit = clampLimit(limit)

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, collaborator, method, request, response, error, started_at, duration_ms
		FROM (
			SELECT * FROM activity_log ORDER BY started_at DESC LIMIT $1
		) recent
		ORDER BY started_at ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var out []activity.Entry
	for rows.Next() {
		var (
			e         activity.Entry
			req, resp []byte
			errText   sql.NullString
			started   time.Time
		)
		if err := rows.Scan(&e.ID, &e.Collaborator, &e.Method, &req, &resp, &errText, &started, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		e.Request = req
		e.Response = resp
		e.Error = errText.String
		e.StartedAt = started.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity: %w", err)
	}
	return out, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
