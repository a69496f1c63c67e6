package models

import "time"

// JobStatus represents the current state of a download job.
type JobStatus string

const (
	StatusCreated     JobStatus = "created"
	StatusDownloading JobStatus = "downloading"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
)

// Terminal reports whether no further status transitions may occur.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job stores metadata and runtime state for one download request.
// Jobs live in memory for the process lifetime; files are removed only
// through the explicit cleanup endpoint.
type Job struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	SizeLimitMB   int       `json:"maxsize"`
	Status        JobStatus `json:"status"`
	Progress      int       `json:"progress"`
	AudioPath     string    `json:"audio_path,omitempty"`
	ThumbnailPath string    `json:"thumbnail_path,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProgressMessage is a single progress update sent to the client while a
// download is running. Progress carries the raw extractor percentage for
// per-chunk updates and the fixed stage values otherwise.
type ProgressMessage struct {
	Progress float64 `json:"progress"`
	Status   string  `json:"status"`
	TaskID   string  `json:"task_id,omitempty"`
}

// ErrorMessage is sent for validation failures, unsupported platforms and
// terminal job failures. ComingSoon marks platforms that are recognized but
// not yet supported; those are informational, not fatal to the caller.
type ErrorMessage struct {
	Error      string `json:"error"`
	TaskID     string `json:"task_id,omitempty"`
	ComingSoon bool   `json:"coming_soon,omitempty"`
	Platform   string `json:"platform,omitempty"`
}

// CompletedMessage is the terminal success payload.
type CompletedMessage struct {
	Message      string  `json:"message"`
	DownloadURL  string  `json:"download_url"`
	TaskID       string  `json:"task_id,omitempty"`
	FileSizeMB   float64 `json:"file_size_mb"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
}
