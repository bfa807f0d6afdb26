package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mini-ttc/etaboard/internal/models"
)

// SQLiteBookmarkRepository stores saved stop boards
type SQLiteBookmarkRepository struct {
	db *sql.DB
}

// NewSQLiteBookmarkRepository creates a new SQLiteBookmarkRepository
func NewSQLiteBookmarkRepository(db *sql.DB) *SQLiteBookmarkRepository {
	return &SQLiteBookmarkRepository{db: db}
}

// ListBookmarks returns bookmarks, newest first
func (r *SQLiteBookmarkRepository) ListBookmarks(ctx context.Context) ([]models.Bookmark, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT bookmark_id, stop_id, name, ttc_id, lines, type, created_at
		FROM bookmarks
		ORDER BY created_at DESC, bookmark_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := []models.Bookmark{}
	for rows.Next() {
		var b models.Bookmark
		var lines, createdAt string
		if err := rows.Scan(&b.ID, &b.StopID, &b.Name, &b.TtcID, &lines, &b.Type, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		if err := json.Unmarshal([]byte(lines), &b.Lines); err != nil {
			return nil, fmt.Errorf("bookmark %s has malformed lines: %w", b.ID, err)
		}
		b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// SaveBookmark stores a bookmark. Saving the same stop, lines and type again
// renames the existing bookmark instead of duplicating it.
func (r *SQLiteBookmarkRepository) SaveBookmark(ctx context.Context, b models.Bookmark) (*models.Bookmark, error) {
	lines, err := json.Marshal(b.Lines)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lines: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO bookmarks (bookmark_id, stop_id, name, ttc_id, lines, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (stop_id, lines, type) DO UPDATE SET name = excluded.name
	`, uuid.New().String(), b.StopID, b.Name, b.TtcID, string(lines), b.Type, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to save bookmark: %w", err)
	}

	saved := b
	var createdAt string
	err = r.db.QueryRowContext(ctx,
		`SELECT bookmark_id, created_at FROM bookmarks WHERE stop_id = ? AND lines = ? AND type = ?`,
		b.StopID, string(lines), b.Type,
	).Scan(&saved.ID, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read saved bookmark: %w", err)
	}
	saved.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &saved, nil
}

// DeleteBookmark removes a bookmark by ID
func (r *SQLiteBookmarkRepository) DeleteBookmark(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE bookmark_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("bookmark %s: %w", id, ErrNotFound)
	}
	return nil
}
