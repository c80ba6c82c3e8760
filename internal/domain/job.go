package domain

import (
	"path/filepath"
	"strings"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

// JobStatuses lists every status in lifecycle order.
var JobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusProcessing,
	JobStatusComplete,
	JobStatusFailed,
}

func ParseJobStatus(s string) (JobStatus, bool) {
	for _, st := range JobStatuses {
		if string(st) == strings.ToLower(strings.TrimSpace(s)) {
			return st, true
		}
	}
	return "", false
}

// Messages written to error_message by the worker and the reaper.
const (
	MessageDirectPlay = "direct play compatible"
	MessageStale      = "job timed out (stale)"
)

// directPlayExtensions are containers every mainstream browser plays as-is.
var directPlayExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
}

type Job struct {
	ID           int64      `json:"id"`
	SourcePath   string     `json:"source_path"`
	OutputPath   string     `json:"output_path"`
	Status       JobStatus  `json:"status"`
	Progress     int        `json:"progress"`
	Attempts     int        `json:"attempts"`
	ErrorMessage string     `json:"error_message,omitempty"`
	MediaID      *int64     `json:"media_id,omitempty"`
	EpisodeID    *int64     `json:"episode_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// IsDirectPlay reports whether the source can be handed to a browser without
// re-encoding. Such jobs complete without probing or encoding.
func (j *Job) IsDirectPlay() bool {
	return IsDirectPlayPath(j.SourcePath)
}

func IsDirectPlayPath(path string) bool {
	return directPlayExtensions[strings.ToLower(filepath.Ext(path))]
}

func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusComplete || j.Status == JobStatusFailed
}

func (j *Job) CanCancel() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusProcessing
}

func (j *Job) CanRestart() bool {
	return j.Status == JobStatusProcessing || j.Status == JobStatusFailed
}

func (j *Job) CanRetry() bool {
	return j.Status == JobStatusFailed
}

// HasPartialOutput reports whether OutputPath points at a file the worker
// writes, as opposed to the untouched source of a direct-play job.
func (j *Job) HasPartialOutput() bool {
	return j.OutputPath != "" && filepath.Clean(j.OutputPath) != filepath.Clean(j.SourcePath)
}

// DefaultOutputPath maps a source file to <outputDir>/<stem>.mp4.
func DefaultOutputPath(outputDir, sourcePath string) string {
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, stem+".mp4")
}
