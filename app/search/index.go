package search

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Index is the full-text search collaborator. It lives in its own database
// file and is updated only by asynchronously executed tasks, so its contents
// lag behind the catalog; the completion reconciler polls it rather than
// assuming convergence.
type Index struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS indexed_videos (
    video_id    INTEGER PRIMARY KEY,
    tenant_id   TEXT NOT NULL,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_indexed_videos_tenant ON indexed_videos(tenant_id);

CREATE VIRTUAL TABLE IF NOT EXISTS videos_fts USING fts5(
    name, description, content='indexed_videos', content_rowid='video_id',
    tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS indexed_videos_ai AFTER INSERT ON indexed_videos BEGIN
    INSERT INTO videos_fts(rowid, name, description) VALUES (new.video_id, new.name, new.description);
END;
CREATE TRIGGER IF NOT EXISTS indexed_videos_ad AFTER DELETE ON indexed_videos BEGIN
    INSERT INTO videos_fts(videos_fts, rowid, name, description) VALUES ('delete', old.video_id, old.name, old.description);
END;
CREATE TRIGGER IF NOT EXISTS indexed_videos_au AFTER UPDATE ON indexed_videos BEGIN
    INSERT INTO videos_fts(videos_fts, rowid, name, description) VALUES ('delete', old.video_id, old.name, old.description);
    INSERT INTO videos_fts(rowid, name, description) VALUES (new.video_id, new.name, new.description);
END;
`

type Entry struct {
	VideoID     int64
	TenantID    string
	Name        string
	Description string
}

type Result struct {
	VideoID  int64
	TenantID string
	Name     string
	Rank     float64
}

func Open(indexPath string) (*Index, error) {
	if dir := filepath.Dir(indexPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	dsn := indexPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(5000)",
			"journal_mode(WAL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply search index schema: %w", err)
	}

	return &Index{db: db}, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

// Upsert adds or refreshes a video in the index.
func (ix *Index) Upsert(ctx context.Context, e Entry) error {
	_, err := ix.db.ExecContext(ctx, `
		INSERT INTO indexed_videos (video_id, tenant_id, name, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			name = excluded.name,
			description = excluded.description
	`, e.VideoID, e.TenantID, e.Name, e.Description)
	if err != nil {
		return fmt.Errorf("failed to upsert video %d into index: %w", e.VideoID, err)
	}
	return nil
}

// Remove deletes a video from the index. Removing an absent id is a no-op.
func (ix *Index) Remove(ctx context.Context, videoID int64) error {
	_, err := ix.db.ExecContext(ctx, `
		DELETE FROM indexed_videos WHERE video_id = ?
	`, videoID)
	if err != nil {
		return fmt.Errorf("failed to remove video %d from index: %w", videoID, err)
	}
	return nil
}

// CountByVideoIDs reports how many of the given ids are present in the index.
func (ix *Index) CountByVideoIDs(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	var count int
	err := ix.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM indexed_videos WHERE video_id IN (`+placeholders+`)`,
		args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count indexed videos: %w", err)
	}
	return count, nil
}

// Search runs a full-text query scoped to one tenant. Ranking is whatever
// FTS5 gives us; callers treat the ordering as opaque.
func (ix *Index) Search(ctx context.Context, tenantID, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := ix.db.QueryContext(ctx, `
		SELECT v.video_id, v.tenant_id, v.name, rank
		FROM videos_fts f
		JOIN indexed_videos v ON v.video_id = f.rowid
		WHERE videos_fts MATCH ? AND v.tenant_id = ?
		ORDER BY rank
		LIMIT ?
	`, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.VideoID, &r.TenantID, &r.Name, &r.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}
	return results, nil
}
