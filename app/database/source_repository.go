package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type sourceRepository struct {
	db *DB
}

func NewSourceRepository(db *DB) SourceRepository {
	return &sourceRepository{db: db}
}

const sourceColumns = `id, tenant_id, kind, name, feed_url, query_string, webpage,
	description, etag, status, auto_approve, auto_update, created_by,
	auto_authors, auto_categories, when_submitted, last_updated`

func (r *sourceRepository) CreateSource(s *Source) (int64, error) {
	authors, err := marshalStrings(s.AutoAuthors)
	if err != nil {
		return 0, fmt.Errorf("failed to encode auto authors: %w", err)
	}
	categories, err := marshalStrings(s.AutoCategories)
	if err != nil {
		return 0, fmt.Errorf("failed to encode auto categories: %w", err)
	}

	status := s.Status
	if status == "" {
		status = SourceUnapproved
	}

	res, err := r.db.Exec(`
		INSERT INTO sources (tenant_id, kind, name, feed_url, query_string, webpage,
			description, etag, status, auto_approve, auto_update, created_by,
			auto_authors, auto_categories, when_submitted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.TenantID, s.Kind, s.Name, s.FeedURL, s.QueryString, s.Webpage,
		s.Description, s.Etag, status, s.AutoApprove, s.AutoUpdate, s.CreatedBy,
		authors, categories, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to create source: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get source id: %w", err)
	}
	return id, nil
}

func (r *sourceRepository) GetSource(id int64) (*Source, error) {
	row := r.db.QueryRow(`SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	return scanSource(row)
}

func (r *sourceRepository) ListSources(tenantID string) ([]Source, error) {
	rows, err := r.db.Query(`
		SELECT `+sourceColumns+` FROM sources
		WHERE tenant_id = ?
		ORDER BY when_submitted DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	return collectSources(rows)
}

func (r *sourceRepository) GetAutoUpdateSources() ([]Source, error) {
	// Feed sources must be active before they are scheduled; search sources
	// have no moderation status of their own.
	rows, err := r.db.Query(`
		SELECT ` + sourceColumns + ` FROM sources
		WHERE auto_update = 1
		  AND (kind = 'search' OR status = 'active')
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get auto-update sources: %w", err)
	}
	defer rows.Close()

	return collectSources(rows)
}

func (r *sourceRepository) GetSourceCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sources`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

func (r *sourceRepository) SetSourceStatus(id int64, status string) error {
	_, err := r.db.Exec(`UPDATE sources SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set source status: %w", err)
	}
	return nil
}

func (r *sourceRepository) UpdateSourceFetchMetadata(id int64, etag string, lastUpdated time.Time) error {
	_, err := r.db.Exec(`
		UPDATE sources SET etag = ?, last_updated = ? WHERE id = ?
	`, etag, lastUpdated.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update source fetch metadata: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	var s Source
	var authors, categories string
	err := row.Scan(
		&s.ID, &s.TenantID, &s.Kind, &s.Name, &s.FeedURL, &s.QueryString,
		&s.Webpage, &s.Description, &s.Etag, &s.Status, &s.AutoApprove,
		&s.AutoUpdate, &s.CreatedBy, &authors, &categories,
		&s.WhenSubmitted, &s.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan source row: %w", err)
	}

	if s.AutoAuthors, err = unmarshalStrings(authors); err != nil {
		return nil, fmt.Errorf("failed to decode auto authors: %w", err)
	}
	if s.AutoCategories, err = unmarshalStrings(categories); err != nil {
		return nil, fmt.Errorf("failed to decode auto categories: %w", err)
	}
	return &s, nil
}

func collectSources(rows *sql.Rows) ([]Source, error) {
	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}
	return sources, nil
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalStrings(data string) ([]string, error) {
	if data == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}
