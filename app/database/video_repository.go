package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type videoRepository struct {
	db *DB
}

func NewVideoRepository(db *DB) VideoRepository {
	return &videoRepository{db: db}
}

const videoColumns = `id, tenant_id, source_id, import_id, guid, name, description,
	website_url, embed_code, file_url, file_url_mimetype, file_url_length,
	thumbnail_url, uploader_name, uploader_url, authors, categories, status,
	when_submitted, when_approved, when_published`

func (r *videoRepository) CreateVideo(v *Video) (int64, error) {
	authors, err := marshalStrings(v.Authors)
	if err != nil {
		return 0, fmt.Errorf("failed to encode authors: %w", err)
	}
	categories, err := marshalStrings(v.Categories)
	if err != nil {
		return 0, fmt.Errorf("failed to encode categories: %w", err)
	}

	status := v.Status
	if status == "" {
		status = VideoUnapproved
	}

	whenSubmitted := v.WhenSubmitted
	if whenSubmitted.IsZero() {
		whenSubmitted = time.Now().UTC()
	}

	// Videos born active skip the approval step, so the approval time is
	// the submission time.
	whenApproved := v.WhenApproved
	if status == VideoActive && whenApproved == nil {
		whenApproved = &whenSubmitted
	}

	res, err := r.db.Exec(`
		INSERT INTO videos (tenant_id, source_id, import_id, guid, name, description,
			website_url, embed_code, file_url, file_url_mimetype, file_url_length,
			thumbnail_url, uploader_name, uploader_url, authors, categories, status,
			when_submitted, when_approved, when_published)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.TenantID, v.SourceID, v.ImportID, v.GUID, v.Name, v.Description,
		v.WebsiteURL, v.EmbedCode, v.FileURL, v.FileURLMimeType, v.FileURLLength,
		v.ThumbnailURL, v.UploaderName, v.UploaderURL, authors, categories, status,
		whenSubmitted, whenApproved, v.WhenPublished)
	if err != nil {
		return 0, fmt.Errorf("failed to create video: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get video id: %w", err)
	}
	return id, nil
}

func (r *videoRepository) GetVideo(id int64) (*Video, error) {
	row := r.db.QueryRow(`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	return scanVideo(row)
}

func (r *videoRepository) ListVideos(tenantID, status string, limit int) ([]Video, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + videoColumns + ` FROM videos WHERE tenant_id = ?`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY when_submitted DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

func (r *videoRepository) DeleteVideo(id int64) error {
	_, err := r.db.Exec(`DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	return nil
}

func (r *videoRepository) FindByGUID(tenantID, guid string) ([]Video, error) {
	rows, err := r.db.Query(`
		SELECT `+videoColumns+` FROM videos WHERE tenant_id = ? AND guid = ?
	`, tenantID, guid)
	if err != nil {
		return nil, fmt.Errorf("failed to find videos by guid: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

func (r *videoRepository) FindByWebsiteURL(tenantID, websiteURL string) ([]Video, error) {
	rows, err := r.db.Query(`
		SELECT `+videoColumns+` FROM videos WHERE tenant_id = ? AND website_url = ?
	`, tenantID, websiteURL)
	if err != nil {
		return nil, fmt.Errorf("failed to find videos by website url: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

func (r *videoRepository) SetVideoStatus(id int64, status string) error {
	return r.SetVideoStatuses([]int64{id}, status)
}

func (r *videoRepository) SetVideoStatuses(ids []int64, status string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, 0, len(ids)+2)

	var query string
	if status == VideoActive {
		query = `UPDATE videos SET status = ?, when_approved = ? WHERE id IN (` + placeholders + `)`
		args = append(args, status, time.Now().UTC())
	} else {
		query = `UPDATE videos SET status = ? WHERE id IN (` + placeholders + `)`
		args = append(args, status)
	}
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to set video statuses: %w", err)
	}
	return nil
}

func (r *videoRepository) GetImportVideos(importID int64, status string) ([]Video, error) {
	rows, err := r.db.Query(`
		SELECT `+videoColumns+` FROM videos
		WHERE import_id = ? AND status = ?
		ORDER BY when_submitted, id
	`, importID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get import videos: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

func (r *videoRepository) GetImportVideoIDs(importID int64, status string) ([]int64, error) {
	rows, err := r.db.Query(`
		SELECT id FROM videos
		WHERE import_id = ? AND status = ?
		ORDER BY when_submitted, id
	`, importID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get import video ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan video id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating video id rows: %w", err)
	}
	return ids, nil
}

func (r *videoRepository) CountActiveVideos(tenantID string) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM videos WHERE tenant_id = ? AND status = ?
	`, tenantID, VideoActive).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active videos: %w", err)
	}
	return count, nil
}

func (r *videoRepository) GetVideoCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM videos`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get video count: %w", err)
	}
	return count, nil
}

func (r *videoRepository) AttachTags(videoID int64, tags []string) error {
	for _, tag := range tags {
		if _, err := r.db.Exec(`
			INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING
		`, tag); err != nil {
			return fmt.Errorf("failed to upsert tag: %w", err)
		}
		if _, err := r.db.Exec(`
			INSERT INTO video_tags (video_id, tag_id)
			SELECT ?, id FROM tags WHERE name = ?
			ON CONFLICT(video_id, tag_id) DO NOTHING
		`, videoID, tag); err != nil {
			return fmt.Errorf("failed to attach tag: %w", err)
		}
	}
	return nil
}

func (r *videoRepository) GetTags(videoID int64) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT t.name FROM tags t
		JOIN video_tags vt ON vt.tag_id = t.id
		WHERE vt.video_id = ?
		ORDER BY t.name
	`, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag rows: %w", err)
	}
	return tags, nil
}

func scanVideo(row rowScanner) (*Video, error) {
	var v Video
	var authors, categories string
	err := row.Scan(
		&v.ID, &v.TenantID, &v.SourceID, &v.ImportID, &v.GUID, &v.Name,
		&v.Description, &v.WebsiteURL, &v.EmbedCode, &v.FileURL,
		&v.FileURLMimeType, &v.FileURLLength, &v.ThumbnailURL,
		&v.UploaderName, &v.UploaderURL, &authors, &categories, &v.Status,
		&v.WhenSubmitted, &v.WhenApproved, &v.WhenPublished,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan video row: %w", err)
	}

	if v.Authors, err = unmarshalStrings(authors); err != nil {
		return nil, fmt.Errorf("failed to decode authors: %w", err)
	}
	if v.Categories, err = unmarshalStrings(categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	return &v, nil
}

func collectVideos(rows *sql.Rows) ([]Video, error) {
	var videos []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating video rows: %w", err)
	}
	return videos, nil
}
