package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a generation job.
type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// IsTerminal returns true if the status represents a final state.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage names the step a PROCESSING job is currently in.
type Stage string

const (
	StageQueued            Stage = "queued"
	StageLoadingReferences Stage = "loading_references"
	StageGenerating        Stage = "generating"
	StageSaving            Stage = "saving"
	StageCompleted         Stage = "completed"
	StageFailed            Stage = "failed"
)

// Progress checkpoints written to the job row as the worker advances.
const (
	ProgressLoadingReferences = 10
	ProgressGenerating        = 30
	ProgressSaving            = 70
	ProgressDone              = 100
)

// GenerationParams is the parameter bag stored with a job.
type GenerationParams struct {
	Prompt             string     `json:"prompt"`
	Model              string     `json:"model"`
	Size               string     `json:"size"`
	Count              int        `json:"count"`
	Watermark          bool       `json:"watermark"`
	ReferenceImageKeys []string   `json:"referenceImageKeys"`
	SaveToVault        bool       `json:"saveToVault"`
	VaultFolderID      *uuid.UUID `json:"vaultFolderId,omitempty"`
}

// ImageCount returns the number of images requested, defaulting to one.
func (p GenerationParams) ImageCount() int {
	if p.Count < 1 {
		return 1
	}
	return p.Count
}

// Job is a persisted generation request and its lifecycle.
type Job struct {
	ID         uuid.UUID        `json:"id"`
	UserID     string           `json:"userId"`
	Status     JobStatus        `json:"status"`
	Params     GenerationParams `json:"params"`
	Progress   int              `json:"progress"`
	Stage      Stage            `json:"stage"`
	Message    string           `json:"message,omitempty"`
	Error      string           `json:"error,omitempty"`
	ResultURLs []string         `json:"resultUrls"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// JobMessage wraps a trigger delivered from the queue with its ack callbacks.
type JobMessage struct {
	JobID uuid.UUID
	Ack   func() error
	Nack  func(requeue bool) error
}

// TriggerMessage is the wire body of a processing trigger.
type TriggerMessage struct {
	JobID uuid.UUID `json:"jobId"`
}

// SubmitRequest is an incoming generation request.
type SubmitRequest struct {
	Prompt             string     `json:"prompt" binding:"required"`
	Model              string     `json:"model"`
	Size               string     `json:"size"`
	Count              int        `json:"count"`
	Watermark          bool       `json:"watermark"`
	ReferenceImageKeys []string   `json:"referenceImageKeys"`
	SaveToVault        bool       `json:"saveToVault"`
	VaultFolderID      *uuid.UUID `json:"vaultFolderId,omitempty"`
}

// SubmitResponse is returned after a generation request is accepted.
type SubmitResponse struct {
	JobID  uuid.UUID `json:"jobId"`
	Status JobStatus `json:"status"`
}

// UploadResponse is returned after a reference image is stored in temp storage.
type UploadResponse struct {
	Key      string `json:"key"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
}
