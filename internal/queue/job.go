package queue

import (
	"time"

	"github.com/google/uuid"
)

// PublishJob is a finished artifact waiting to be posted.
type PublishJob struct {
	ID          string
	RequestID   string
	Kind        string
	Filename    string
	ContentType string
	Data        []byte
	Message     string
	DedupeKey   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// NewPublishJob creates a job for data. The request ID doubles as the
// dedupe key so a retried request is posted once.
func NewPublishJob(requestID, kind, filename, contentType string, data []byte, ttl time.Duration) *PublishJob {
	now := time.Now()
	job := &PublishJob{
		ID:          uuid.NewString(),
		RequestID:   requestID,
		Kind:        kind,
		Filename:    filename,
		ContentType: contentType,
		Data:        data,
		DedupeKey:   requestID,
		CreatedAt:   now,
	}

	if ttl > 0 {
		job.ExpiresAt = now.Add(ttl)
	}

	return job
}

// IsExpired returns true if the job has passed its TTL.
func (j *PublishJob) IsExpired() bool {
	if j.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(j.ExpiresAt)
}
