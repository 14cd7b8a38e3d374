package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/vuchat/vuchat/internal/models"
)

// AnalysisRepo persists pipeline results so an analysis survives a
// restart even though the conversation session it belongs to does not.
type AnalysisRepo struct {
	db *DB
}

func NewAnalysisRepo(db *DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

func (r *AnalysisRepo) Save(ctx context.Context, videoID string, analysis *models.VideoAnalysis) error {
	eventsJSON, err := json.Marshal(analysis.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	adherenceJSON, err := json.Marshal(analysis.Guidelines)
	if err != nil {
		return fmt.Errorf("failed to marshal guideline adherence: %w", err)
	}

	if r.db.dbType == "postgres" {
		query := `
			INSERT INTO analyses (id, video_id, summary, events, guideline_adherence, analyzed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (video_id)
			DO UPDATE SET
				summary = EXCLUDED.summary,
				events = EXCLUDED.events,
				guideline_adherence = EXCLUDED.guideline_adherence,
				analyzed_at = EXCLUDED.analyzed_at`

		_, err = r.db.conn.ExecContext(ctx, query,
			uuid.New().String(),
			videoID,
			analysis.Summary,
			eventsJSON,
			adherenceJSON,
			analysis.AnalyzedAt,
		)
		return err
	}

	query := `
		INSERT OR REPLACE INTO analyses (id, video_id, summary, events, guideline_adherence, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.db.conn.ExecContext(ctx, query,
		uuid.New().String(),
		videoID,
		analysis.Summary,
		string(eventsJSON),
		string(adherenceJSON),
		analysis.AnalyzedAt,
	)
	return err
}

func (r *AnalysisRepo) GetByVideoID(ctx context.Context, videoID string) (*models.VideoAnalysis, error) {
	query := `
		SELECT summary, events, guideline_adherence, analyzed_at
		FROM analyses WHERE video_id = ?`
	if r.db.dbType == "postgres" {
		query = `
		SELECT summary, events, guideline_adherence, analyzed_at
		FROM analyses WHERE video_id = $1`
	}

	analysis := &models.VideoAnalysis{}
	var eventsJSON, adherenceJSON string

	err := r.db.conn.QueryRowContext(ctx, query, videoID).Scan(
		&analysis.Summary,
		&eventsJSON,
		&adherenceJSON,
		&analysis.AnalyzedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}

	if err := json.Unmarshal([]byte(eventsJSON), &analysis.Events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %w", err)
	}
	if err := json.Unmarshal([]byte(adherenceJSON), &analysis.Guidelines); err != nil {
		return nil, fmt.Errorf("failed to unmarshal guideline adherence: %w", err)
	}

	return analysis, nil
}

func (r *AnalysisRepo) DeleteByVideoID(ctx context.Context, videoID string) error {
	query := `DELETE FROM analyses WHERE video_id = ?`
	if r.db.dbType == "postgres" {
		query = `DELETE FROM analyses WHERE video_id = $1`
	}
	_, err := r.db.conn.ExecContext(ctx, query, videoID)
	return err
}
