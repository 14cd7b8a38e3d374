package database

import (
	"database/sql"
	"fmt"

	"github.com/vuchat/vuchat/internal/models"
)

type VideoRepository struct {
	db *DB
}

func NewVideoRepository(db *DB) *VideoRepository {
	return &VideoRepository{db: db}
}

func (r *VideoRepository) InsertVideo(video *models.Video) error {
	query := `
		INSERT INTO videos (id, original_name, filename, content_type, size, duration, session_id, upload_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if r.db.dbType == "postgres" {
		query = `
		INSERT INTO videos (id, original_name, filename, content_type, size, duration, session_id, upload_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	}

	_, err := r.db.conn.Exec(query,
		video.ID,
		video.OriginalName,
		video.Filename,
		video.ContentType,
		video.Size,
		video.Duration,
		video.SessionID,
		video.UploadTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}
	return nil
}

func (r *VideoRepository) GetVideoByID(id string) (*models.Video, error) {
	query := `
		SELECT id, original_name, filename, content_type, size, duration, session_id, upload_time
		FROM videos WHERE id = ?`
	if r.db.dbType == "postgres" {
		query = `
		SELECT id, original_name, filename, content_type, size, duration, session_id, upload_time
		FROM videos WHERE id = $1`
	}

	video := &models.Video{}
	err := r.db.conn.QueryRow(query, id).Scan(
		&video.ID,
		&video.OriginalName,
		&video.Filename,
		&video.ContentType,
		&video.Size,
		&video.Duration,
		&video.SessionID,
		&video.UploadTime,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("video not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return video, nil
}

func (r *VideoRepository) ListVideos() ([]models.Video, error) {
	query := `
		SELECT id, original_name, filename, content_type, size, duration, session_id, upload_time
		FROM videos ORDER BY upload_time DESC`

	rows, err := r.db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var video models.Video
		if err := rows.Scan(
			&video.ID,
			&video.OriginalName,
			&video.Filename,
			&video.ContentType,
			&video.Size,
			&video.Duration,
			&video.SessionID,
			&video.UploadTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

func (r *VideoRepository) GetVideosBySessionID(sessionID string) ([]models.Video, error) {
	query := `
		SELECT id, original_name, filename, content_type, size, duration, session_id, upload_time
		FROM videos WHERE session_id = ? ORDER BY upload_time DESC`
	if r.db.dbType == "postgres" {
		query = `
		SELECT id, original_name, filename, content_type, size, duration, session_id, upload_time
		FROM videos WHERE session_id = $1 ORDER BY upload_time DESC`
	}

	rows, err := r.db.conn.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos by session: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var video models.Video
		if err := rows.Scan(
			&video.ID,
			&video.OriginalName,
			&video.Filename,
			&video.ContentType,
			&video.Size,
			&video.Duration,
			&video.SessionID,
			&video.UploadTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}
