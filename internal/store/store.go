package store

import (
	"sync"
	"time"

	"audiofetch/internal/models"

	"github.com/google/uuid"
)

// Store is the in-memory job registry. It is safe for concurrent use;
// callers receive copies, never pointers into the map.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

func New() *Store {
	return &Store{jobs: make(map[string]*models.Job)}
}

// Create inserts a new job for the given request and returns its id.
func (s *Store) Create(url string, sizeLimitMB int) string {
	now := time.Now()
	job := &models.Job{
		ID:          uuid.NewString(),
		URL:         url,
		SizeLimitMB: sizeLimitMB,
		Status:      models.StatusCreated,
		Progress:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return job.ID
}

// Update applies fn to the job with the given id and refreshes UpdatedAt.
// Unknown ids are a no-op. While the job has not failed, a stored progress
// value never regresses, whatever fn reports.
func (s *Store) Update(id string, fn func(*models.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return
	}

	prevProgress := job.Progress
	fn(job)
	if job.Status != models.StatusFailed && job.Progress < prevProgress {
		job.Progress = prevProgress
	}
	job.UpdatedAt = time.Now()
}

// Get returns a copy of the job with the given id.
func (s *Store) Get(id string) (models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return *job, true
}

// Len returns the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Jobs returns a snapshot of all tracked jobs.
func (s *Store) Jobs() []models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}
