package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateAnalysis inserts a new analysis job
func (r *Repository) CreateAnalysis(ctx context.Context, job *models.AnalysisJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = models.AnalysisStatusQueued
	}

	query := `
		INSERT INTO analyses (id, user_id, video_id, status, comments_object, total_comments, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		job.ID, job.UserID, job.VideoID, job.Status, job.CommentsObject,
		job.TotalComments, job.Message,
	).Scan(&job.CreatedAt, &job.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}

	return nil
}

// GetAnalysis retrieves an analysis job by ID
func (r *Repository) GetAnalysis(ctx context.Context, id string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob

	query := `
		SELECT id, user_id, video_id, status, COALESCE(comments_object, ''),
		       COALESCE(judol_object, ''), COALESCE(non_judol_object, ''),
		       total_comments, COALESCE(message, ''), created_at, updated_at, completed_at
		FROM analyses
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.VideoID, &job.Status, &job.CommentsObject,
		&job.JudolObject, &job.NonJudolObject, &job.TotalComments, &job.Message,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	return &job, nil
}

// UpdateAnalysis stores status, result objects and completion time of a job
func (r *Repository) UpdateAnalysis(ctx context.Context, job *models.AnalysisJob) error {
	query := `
		UPDATE analyses
		SET status = $2, comments_object = $3, judol_object = $4, non_judol_object = $5,
		    total_comments = $6, message = $7, completed_at = $8, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		job.ID, job.Status, job.CommentsObject, job.JudolObject, job.NonJudolObject,
		job.TotalComments, job.Message, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAnalysisNotFound
	}

	return nil
}
