package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/skustudio/api/internal/model"
	"github.com/skustudio/api/internal/store"
	"github.com/skustudio/api/internal/worker"
)

var (
	// ErrNoResults is returned when a download is requested for a job
	// with zero successful items.
	ErrNoResults = errors.New("no results to download")

	// ErrNoUsableItems mirrors the store sentinel for callers that only
	// import the service layer.
	ErrNoUsableItems = store.ErrNoUsableItems

	// ErrJobNotFound mirrors the store sentinel.
	ErrJobNotFound = store.ErrJobNotFound
)

// BatchService is the API-facing surface over the job store and runner.
// Dispatch goes through asynq when Redis is available; without it, jobs
// run on a plain goroutine in-process.
type BatchService struct {
	store       *store.Store
	asynqClient *asynq.Client
	runner      *worker.Runner
}

// NewBatchService creates a new batch service. asynqClient may be nil.
func NewBatchService(st *store.Store, asynqClient *asynq.Client, runner *worker.Runner) *BatchService {
	return &BatchService{
		store:       st,
		asynqClient: asynqClient,
		runner:      runner,
	}
}

// CreateJob normalizes the submitted rows and registers a pending job.
// Rows without an image URL are dropped; a request that drops every row
// fails with ErrNoUsableItems.
func (s *BatchService) CreateJob(req *model.BatchCreateRequest) (*model.BatchCreateResponse, error) {
	items := make([]model.Item, 0, len(req.Items))
	dropped := 0
	for i, row := range req.Items {
		imageURL := strings.TrimSpace(row.ImageURL)
		if imageURL == "" {
			dropped++
			continue
		}
		id := strings.TrimSpace(row.ID)
		if id == "" {
			id = fmt.Sprintf("item-%d", i+1)
		}
		items = append(items, model.Item{
			ID:       id,
			ImageURL: imageURL,
			Title:    strings.TrimSpace(row.Title),
			Subtitle: strings.TrimSpace(row.Subtitle),
			Status:   model.ItemStatusPending,
		})
	}

	params := model.JobParams{
		StylePreset:    req.StylePreset,
		Options:        req.Options,
		Requirements:   strings.TrimSpace(req.Requirements),
		TargetLanguage: req.TargetLanguage,
		AspectRatio:    req.AspectRatio,
	}
	if params.AspectRatio == "" {
		params.AspectRatio = model.Ratio1x1
	}
	if params.TargetLanguage == "" {
		params.TargetLanguage = model.LanguageSame
	}

	job, err := s.store.Create(items, params)
	if err != nil {
		return nil, err
	}

	return &model.BatchCreateResponse{
		JobID:     job.ID,
		Status:    job.Status,
		Total:     job.Total,
		Dropped:   dropped,
		CreatedAt: job.CreatedAt,
	}, nil
}

// StartJob moves a job into processing and dispatches the runner. It is
// idempotent: starting a job that is already processing, or finished,
// reports the current status without dispatching a second run.
func (s *BatchService) StartJob(ctx context.Context, jobID string) (*model.BatchStartResponse, error) {
	job, started := s.store.MarkProcessing(jobID)
	if job == nil {
		return nil, ErrJobNotFound
	}
	if !started {
		return &model.BatchStartResponse{JobID: job.ID, Status: job.Status}, nil
	}

	s.dispatch(jobID)
	return &model.BatchStartResponse{JobID: job.ID, Status: job.Status}, nil
}

// dispatch hands the job to asynq, or runs it on a goroutine when no
// queue is available. Enqueue failures also fall back to in-process:
// the job is already marked processing and must not be stranded.
func (s *BatchService) dispatch(jobID string) {
	if s.asynqClient != nil {
		task, err := worker.NewBatchTask(jobID)
		if err == nil {
			if _, err = s.asynqClient.Enqueue(task,
				asynq.Queue(worker.QueueBatch),
				asynq.MaxRetry(0),
			); err == nil {
				return
			}
		}
		log.Printf("Failed to enqueue job %s, running in-process: %v", jobID, err)
	}

	// jobID may alias a fasthttp request buffer that is recycled once the
	// handler returns; copy it before the goroutine outlives the request.
	jobID = strings.Clone(jobID)
	go func() {
		if err := s.runner.Run(context.Background(), jobID); err != nil {
			log.Printf("Job %s run failed: %v", jobID, err)
		}
	}()
}

// GetJob returns the full job record including item-level status.
func (s *BatchService) GetJob(jobID string) (*model.Job, error) {
	job, ok := s.store.Get(jobID)
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// ListJobs returns summaries of recent jobs, newest first.
func (s *BatchService) ListJobs(limit int) []model.JobSummary {
	return s.store.List(limit)
}

// CancelJob requests cooperative cancellation. Cancelling a finished
// job is a no-op that reports the terminal status unchanged.
func (s *BatchService) CancelJob(jobID string) (*model.BatchCancelResponse, error) {
	job, ok := s.store.Cancel(jobID)
	if !ok {
		return nil, ErrJobNotFound
	}
	return &model.BatchCancelResponse{JobID: job.ID, Status: job.Status}, nil
}

// DownloadResults packages every successful item's output into a ZIP.
// The archive name carries a partial marker when the job has not
// completed all items successfully.
func (s *BatchService) DownloadResults(jobID string) (string, []byte, error) {
	job, ok := s.store.Get(jobID)
	if !ok {
		return "", nil, ErrJobNotFound
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := make(map[string]int)
	written := 0

	for _, item := range job.Items {
		if item.Status != model.ItemStatusSuccess || item.OutputPath == "" {
			continue
		}
		data, err := os.ReadFile(item.OutputPath)
		if err != nil {
			log.Printf("Skipping missing output for item %s of job %s: %v", item.ID, jobID, err)
			continue
		}

		name := archiveName(item, names)
		w, err := zw.Create(name)
		if err != nil {
			zw.Close()
			return "", nil, fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			zw.Close()
			return "", nil, fmt.Errorf("failed to write %s to archive: %w", name, err)
		}
		written++
	}

	if err := zw.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if written == 0 {
		return "", nil, ErrNoResults
	}

	filename := fmt.Sprintf("results_%s.zip", shortID(job.ID))
	if written < job.Total {
		filename = fmt.Sprintf("results_%s_partial.zip", shortID(job.ID))
	}
	return filename, buf.Bytes(), nil
}

// archiveName derives a ZIP entry name from the item, deduplicating
// collisions as name_2.ext, name_3.ext and so on.
func archiveName(item model.Item, names map[string]int) string {
	ext := filepath.Ext(item.OutputPath)
	if ext == "" {
		ext = ".png"
	}
	base := strings.TrimSpace(item.ID)
	if base == "" {
		base = strings.TrimSuffix(filepath.Base(item.OutputPath), ext)
	}

	names[base]++
	if n := names[base]; n > 1 {
		return fmt.Sprintf("%s_%d%s", base, n, ext)
	}
	return base + ext
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
