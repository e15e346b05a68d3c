// Package worker executes batch jobs: it fans items out to a bounded
// pool of goroutines and drives each item through fetch, translate,
// generate, and persist.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/skustudio/api/internal/client"
	"github.com/skustudio/api/internal/lang"
	"github.com/skustudio/api/internal/model"
	"github.com/skustudio/api/internal/store"
	"github.com/skustudio/api/internal/websocket"
)

// ImageGenerator produces a styled image from a reference photo.
type ImageGenerator interface {
	Generate(ctx context.Context, req *client.GenerateImageRequest) (*client.GenerateImageResult, error)
	IsConfigured() bool
}

// Translator converts product copy between languages.
type Translator interface {
	Translate(ctx context.Context, text string, source, target model.Language) (string, error)
	IsConfigured() bool
}

// SourceFetcher downloads remote reference images.
type SourceFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// placeholderPNG is a valid 1x1 transparent PNG, written as item output
// when no image provider is configured (local development and tests).
var placeholderPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

// Runner drives one job at a time through its items. It is safe to run
// multiple jobs concurrently on the same Runner.
type Runner struct {
	store         *store.Store
	imagegen      ImageGenerator
	translator    Translator
	fetcher       SourceFetcher
	storage       client.StorageClient
	hub           *websocket.Hub
	maxConcurrent int
}

// NewRunner creates a runner. imagegen, translator, storage, and hub
// may be nil; the runner degrades to placeholder output, no
// translation, local-only persistence, and no live updates.
func NewRunner(st *store.Store, imagegen ImageGenerator, translator Translator, fetcher SourceFetcher, storage client.StorageClient, hub *websocket.Hub, maxConcurrent int) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &Runner{
		store:         st,
		imagegen:      imagegen,
		translator:    translator,
		fetcher:       fetcher,
		storage:       storage,
		hub:           hub,
		maxConcurrent: maxConcurrent,
	}
}

// Run processes every unattempted item of the job and finalizes its
// status. Items already in a terminal state are skipped, so re-running
// after an interrupt only touches the remainder. Cancellation is
// honored between item dispatches, never mid-item.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	job, ok := r.store.Get(jobID)
	if !ok {
		return store.ErrJobNotFound
	}
	if job.Status != model.JobStatusProcessing {
		log.Printf("Job %s is %s, nothing to run", jobID, job.Status)
		return nil
	}

	sem := make(chan struct{}, r.maxConcurrent)
	var wg sync.WaitGroup

	for i := range job.Items {
		if ctx.Err() != nil {
			break
		}
		if snapshot, ok := r.store.Get(jobID); !ok || snapshot.Status == model.JobStatusCancelled {
			break
		}

		sem <- struct{}{}
		if !r.store.BeginItem(jobID, i) {
			<-sem
			continue
		}

		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			defer func() { <-sem }()
			r.processItem(ctx, job, index)
		}(i)
	}

	wg.Wait()

	final, ok := r.store.FinishJob(jobID)
	if !ok {
		return store.ErrJobNotFound
	}
	log.Printf("Job %s finished as %s: %d/%d processed, %d failed",
		jobID, final.Status, final.Processed, final.Total, final.FailedCount)
	if r.hub != nil {
		r.hub.BroadcastComplete(final.Summary())
	}
	return nil
}

// processItem runs the full pipeline for one item. Any step failing
// marks the item failed with the error text; the job keeps going.
func (r *Runner) processItem(ctx context.Context, job *model.Job, index int) {
	item := job.Items[index]

	fail := func(err error) {
		summary, _ := r.store.FailItem(job.ID, index, err.Error())
		if r.hub != nil {
			r.hub.BroadcastItem(job.ID, item.ID, model.ItemStatusFailed, err.Error())
			r.hub.BroadcastProgress(summary)
		}
	}

	source, err := r.resolveSource(ctx, item.ImageURL)
	if err != nil {
		fail(fmt.Errorf("failed to load reference image: %w", err))
		return
	}

	title, subtitle, err := r.localizeCopy(ctx, item, job.Params.TargetLanguage)
	if err != nil {
		fail(fmt.Errorf("failed to translate copy: %w", err))
		return
	}

	prompt := ComposePrompt(job.Params, title, subtitle)

	var output []byte
	if r.imagegen == nil || !r.imagegen.IsConfigured() {
		output = placeholderPNG
	} else {
		result, err := r.imagegen.Generate(ctx, &client.GenerateImageRequest{
			ReferenceImage: source,
			Prompt:         prompt,
			Title:          title,
			Subtitle:       subtitle,
			AspectRatio:    string(job.Params.AspectRatio),
		})
		if err != nil {
			fail(err)
			return
		}
		output = result.Data
	}

	filename := fmt.Sprintf("%d_%s.png", index+1, sanitizeFilename(item.ID))
	outputPath := filepath.Join(job.OutputDir, filename)
	if err := os.WriteFile(outputPath, output, 0o644); err != nil {
		fail(fmt.Errorf("failed to write output: %w", err))
		return
	}

	outputURL := ""
	if r.storage != nil {
		key := fmt.Sprintf("outputs/%s/%s", job.ID, filename)
		url, err := r.storage.Upload(ctx, key, bytes.NewReader(output), "image/png")
		if err != nil {
			// Local output is authoritative; mirroring is best effort.
			log.Printf("Failed to mirror %s to object storage: %v", key, err)
		} else {
			outputURL = url
		}
	}

	summary, _ := r.store.CompleteItem(job.ID, index, outputPath, outputURL)
	if r.hub != nil {
		r.hub.BroadcastItem(job.ID, item.ID, model.ItemStatusSuccess, "")
		r.hub.BroadcastProgress(summary)
	}
}

// resolveSource loads the reference image. Three addressing schemes:
// http(s) URLs are downloaded, output://<jobID>/<file> reads a previous
// job's generated file, anything else is a local path.
func (r *Runner) resolveSource(ctx context.Context, imageURL string) ([]byte, error) {
	switch {
	case strings.HasPrefix(imageURL, "http://"), strings.HasPrefix(imageURL, "https://"):
		return r.fetcher.Fetch(ctx, imageURL)

	case strings.HasPrefix(imageURL, "output://"):
		rest := strings.TrimPrefix(imageURL, "output://")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("malformed output reference %q", imageURL)
		}
		if strings.Contains(rest, "..") {
			return nil, fmt.Errorf("invalid output reference %q", imageURL)
		}
		return os.ReadFile(filepath.Join(r.store.OutputRoot(), parts[0], parts[1]))

	default:
		return os.ReadFile(imageURL)
	}
}

// localizeCopy translates the item's title and subtitle into the target
// language when the detected source language differs. A translation
// failure is an item failure.
func (r *Runner) localizeCopy(ctx context.Context, item model.Item, target model.Language) (string, string, error) {
	if target == "" || target == model.LanguageSame {
		return item.Title, item.Subtitle, nil
	}
	if item.Title == "" && item.Subtitle == "" {
		return "", "", nil
	}

	detected := lang.Detect(item.Title + " " + item.Subtitle)
	if detected == target {
		return item.Title, item.Subtitle, nil
	}

	if r.translator == nil {
		return "", "", fmt.Errorf("translation requested but no provider configured")
	}

	title := item.Title
	if title != "" {
		translated, err := r.translator.Translate(ctx, title, detected, target)
		if err != nil {
			return "", "", err
		}
		title = translated
	}

	subtitle := item.Subtitle
	if subtitle != "" {
		translated, err := r.translator.Translate(ctx, subtitle, detected, target)
		if err != nil {
			return "", "", err
		}
		subtitle = translated
	}

	return title, subtitle, nil
}

// sanitizeFilename strips characters that cannot appear in file names.
func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, name)
}
