// Package store keeps the process-wide registry of batch jobs, mirrored
// to disk as one JSON checkpoint per job for crash recovery.
package store

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skustudio/api/internal/model"
)

var (
	// ErrNoUsableItems is returned when a job would be created with
	// zero items after normalization.
	ErrNoUsableItems = errors.New("no usable items")

	// ErrJobNotFound is returned for lookups of unknown job ids.
	ErrJobNotFound = errors.New("job not found")
)

// checkpointFile is the per-job checkpoint name inside its output dir.
const checkpointFile = "job.json"

// Store owns every in-memory job record. All mutation goes through its
// methods; readers get deep copies so the runner can keep writing.
type Store struct {
	mu          sync.RWMutex
	jobs        map[string]*model.Job
	outputRoot  string
	reloadLimit int
}

// New creates a Store writing checkpoints under outputRoot. reloadLimit
// caps how many persisted jobs Load brings back into memory.
func New(outputRoot string, reloadLimit int) *Store {
	if reloadLimit <= 0 {
		reloadLimit = 200
	}
	return &Store{
		jobs:        make(map[string]*model.Job),
		outputRoot:  outputRoot,
		reloadLimit: reloadLimit,
	}
}

// OutputRoot returns the directory all job output dirs live under.
func (s *Store) OutputRoot() string {
	return s.outputRoot
}

// Create registers a new pending job and writes its initial checkpoint.
func (s *Store) Create(items []model.Item, params model.JobParams) (*model.Job, error) {
	if len(items) == 0 {
		return nil, ErrNoUsableItems
	}

	jobID := uuid.New().String()
	outputDir := filepath.Join(s.outputRoot, jobID)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}

	now := time.Now()
	job := &model.Job{
		ID:        jobID,
		Status:    model.JobStatusPending,
		Items:     items,
		Total:     len(items),
		OutputDir: outputDir,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[jobID] = job
	s.checkpointLocked(job)
	snapshot := job.Clone()
	s.mu.Unlock()

	return snapshot, nil
}

// Get returns a deep copy of the job, or false if unknown.
func (s *Store) Get(jobID string) (*model.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// List returns summaries of the most recently created jobs, newest first.
func (s *Store) List(limit int) []model.JobSummary {
	s.mu.RLock()
	summaries := make([]model.JobSummary, 0, len(s.jobs))
	for _, job := range s.jobs {
		summaries = append(summaries, job.Summary())
	}
	s.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}

// MarkProcessing transitions a pending or interrupted job to processing.
// The second return is false when the job is unknown or cannot start
// (already processing, or terminal).
func (s *Store) MarkProcessing(jobID string) (*model.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	if job.Status != model.JobStatusPending && job.Status != model.JobStatusInterrupted {
		return job.Clone(), false
	}

	job.Status = model.JobStatusProcessing
	s.checkpointLocked(job)
	return job.Clone(), true
}

// BeginItem marks one item as processing. Returns false when the item
// should be skipped: job cancelled, job unknown, or item already
// attempted (idempotent re-entry after an interrupt).
func (s *Store) BeginItem(jobID string, index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || index < 0 || index >= len(job.Items) {
		return false
	}
	if job.Status == model.JobStatusCancelled {
		return false
	}
	if job.Items[index].Status.IsTerminal() {
		return false
	}

	job.Items[index].Status = model.ItemStatusProcessing
	s.checkpointLocked(job)
	return true
}

// CompleteItem records a successful item and bumps the job counters.
func (s *Store) CompleteItem(jobID string, index int, outputPath, outputURL string) (model.JobSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || index < 0 || index >= len(job.Items) {
		return model.JobSummary{}, false
	}

	item := &job.Items[index]
	item.Status = model.ItemStatusSuccess
	item.OutputPath = outputPath
	item.OutputURL = outputURL
	item.Error = ""
	job.Processed++
	job.SuccessCount++
	s.checkpointLocked(job)
	return job.Summary(), true
}

// FailItem records a failed item and bumps the job counters. The error
// text is recorded verbatim; the job itself keeps running.
func (s *Store) FailItem(jobID string, index int, errMsg string) (model.JobSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || index < 0 || index >= len(job.Items) {
		return model.JobSummary{}, false
	}

	item := &job.Items[index]
	item.Status = model.ItemStatusFailed
	item.Error = errMsg
	job.Processed++
	job.FailedCount++
	s.checkpointLocked(job)
	return job.Summary(), true
}

// FinishJob moves a processing job to completed. A job that was
// cancelled mid-run keeps its cancelled status.
func (s *Store) FinishJob(jobID string) (*model.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	if job.Status == model.JobStatusProcessing {
		job.Status = model.JobStatusCompleted
		s.checkpointLocked(job)
	}
	return job.Clone(), true
}

// Cancel requests cooperative cancellation. Terminal jobs are returned
// unchanged: cancelling a finished job is a no-op, not an error.
func (s *Store) Cancel(jobID string) (*model.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	if !job.Status.IsTerminal() {
		job.Status = model.JobStatusCancelled
		s.checkpointLocked(job)
	}
	return job.Clone(), true
}

// Load scans the output root for persisted checkpoints and restores the
// newest jobs into memory. Jobs persisted as processing are rewritten to
// interrupted: the runner that owned them died with the old process.
func (s *Store) Load() (loaded, interrupted int, err error) {
	entries, err := os.ReadDir(s.outputRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}

	var jobs []*model.Job
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(s.outputRoot, entry.Name(), checkpointFile)
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			continue
		}
		var job model.Job
		if unmarshalErr := json.Unmarshal(data, &job); unmarshalErr != nil {
			log.Printf("Skipping unreadable checkpoint %s: %v", path, unmarshalErr)
			continue
		}
		if job.ID == "" {
			continue
		}
		jobs = append(jobs, &job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if len(jobs) > s.reloadLimit {
		jobs = jobs[:s.reloadLimit]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range jobs {
		if job.Status == model.JobStatusProcessing {
			job.Status = model.JobStatusInterrupted
			interrupted++
			s.checkpointLocked(job)
		}
		s.jobs[job.ID] = job
		loaded++
	}
	return loaded, interrupted, nil
}

// checkpointLocked serializes the job to its output dir via an atomic
// temp-file-then-rename write. Failures are logged and swallowed: the
// in-memory record stays authoritative and the runner must not die over
// a persistence hiccup. Callers must hold s.mu.
func (s *Store) checkpointLocked(job *model.Job) {
	job.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		log.Printf("Failed to marshal checkpoint for job %s: %v", job.ID, err)
		return
	}

	target := filepath.Join(job.OutputDir, checkpointFile)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Printf("Failed to write checkpoint for job %s: %v", job.ID, err)
		return
	}
	if err := os.Rename(tmp, target); err != nil {
		log.Printf("Failed to commit checkpoint for job %s: %v", job.ID, err)
	}
}
