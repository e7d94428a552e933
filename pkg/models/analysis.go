package models

import (
	"time"
)

// AnalysisStatus represents the lifecycle of a comment classification job
type AnalysisStatus string

const (
	AnalysisStatusQueued     AnalysisStatus = "queued"
	AnalysisStatusProcessing AnalysisStatus = "processing"
	AnalysisStatusSuccess    AnalysisStatus = "success"
	AnalysisStatusFailed     AnalysisStatus = "failed"
)

// IsTerminal reports whether no further transitions happen after this status
func (s AnalysisStatus) IsTerminal() bool {
	return s == AnalysisStatusSuccess || s == AnalysisStatusFailed
}

// AnalysisJob is a judol classification request for one video's comments
type AnalysisJob struct {
	ID             string         `json:"id" db:"id"`
	UserID         string         `json:"user_id" db:"user_id"`
	VideoID        string         `json:"video_id" db:"video_id"`
	Status         AnalysisStatus `json:"status" db:"status"`
	CommentsObject string         `json:"comments_object,omitempty" db:"comments_object"`
	JudolObject    string         `json:"judol_object,omitempty" db:"judol_object"`
	NonJudolObject string         `json:"non_judol_object,omitempty" db:"non_judol_object"`
	TotalComments  int            `json:"total_comments" db:"total_comments"`
	Message        string         `json:"message,omitempty" db:"message"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}
