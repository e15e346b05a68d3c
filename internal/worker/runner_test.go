package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/skustudio/api/internal/client"
	"github.com/skustudio/api/internal/model"
	"github.com/skustudio/api/internal/store"
)

type fakeGenerator struct {
	fn func(req *client.GenerateImageRequest) (*client.GenerateImageResult, error)
}

func (g *fakeGenerator) Generate(_ context.Context, req *client.GenerateImageRequest) (*client.GenerateImageResult, error) {
	return g.fn(req)
}

func (g *fakeGenerator) IsConfigured() bool { return true }

type fakeTranslator struct {
	err error
}

func (t *fakeTranslator) Translate(_ context.Context, text string, _, target model.Language) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	return "[" + string(target) + "] " + text, nil
}

func (t *fakeTranslator) IsConfigured() bool { return true }

func writeSourceImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("source-image-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestJob(t *testing.T, st *store.Store, sources []string, params model.JobParams) *model.Job {
	t.Helper()
	items := make([]model.Item, len(sources))
	for i, src := range sources {
		items[i] = model.Item{
			ID:       fmt.Sprintf("sku-%d", i+1),
			ImageURL: src,
			Title:    "Desk Lamp",
			Status:   model.ItemStatusPending,
		}
	}
	job, err := st.Create(items, params)
	if err != nil {
		t.Fatal(err)
	}
	return job
}

func defaultParams() model.JobParams {
	return model.JobParams{
		StylePreset:    model.StylePlain,
		AspectRatio:    model.Ratio1x1,
		TargetLanguage: model.LanguageSame,
	}
}

func TestRunCompletesJobWithPlaceholderOutput(t *testing.T) {
	dir := t.TempDir()
	st := store.New(filepath.Join(dir, "out"), 0)
	src := writeSourceImage(t, dir, "a.jpg")

	job := newTestJob(t, st, []string{src, src, src}, defaultParams())
	st.MarkProcessing(job.ID)

	// nil generator falls back to placeholder output.
	r := NewRunner(st, nil, nil, nil, nil, nil, 2)
	if err := r.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got, _ := st.Get(job.ID)
	if got.Status != model.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.SuccessCount != 3 || got.FailedCount != 0 || got.Processed != 3 {
		t.Errorf("unexpected counters: %+v", got.Summary())
	}
	for _, item := range got.Items {
		if item.OutputPath == "" {
			t.Errorf("item %s has no output path", item.ID)
			continue
		}
		if _, err := os.Stat(item.OutputPath); err != nil {
			t.Errorf("output missing for item %s: %v", item.ID, err)
		}
	}
}

func TestRunRecordsProviderFailuresPerItem(t *testing.T) {
	dir := t.TempDir()
	st := store.New(filepath.Join(dir, "out"), 0)
	src := writeSourceImage(t, dir, "a.jpg")

	job := newTestJob(t, st, []string{src, src}, defaultParams())
	st.MarkProcessing(job.ID)

	calls := 0
	gen := &fakeGenerator{fn: func(req *client.GenerateImageRequest) (*client.GenerateImageResult, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("provider overloaded")
		}
		return &client.GenerateImageResult{Data: []byte("img"), MimeType: "image/png"}, nil
	}}

	r := NewRunner(st, gen, nil, nil, nil, nil, 1)
	if err := r.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got, _ := st.Get(job.ID)
	if got.Status != model.JobStatusCompleted {
		t.Fatalf("one failed item must not fail the job, got %s", got.Status)
	}
	if got.SuccessCount != 1 || got.FailedCount != 1 {
		t.Errorf("unexpected counters: %+v", got.Summary())
	}
	if got.Items[0].Error != "provider overloaded" {
		t.Errorf("item error not recorded: %q", got.Items[0].Error)
	}
}

func TestRunSkipsCancelledJob(t *testing.T) {
	dir := t.TempDir()
	st := store.New(filepath.Join(dir, "out"), 0)
	src := writeSourceImage(t, dir, "a.jpg")

	job := newTestJob(t, st, []string{src, src}, defaultParams())
	st.MarkProcessing(job.ID)
	st.Cancel(job.ID)

	r := NewRunner(st, nil, nil, nil, nil, nil, 1)
	if err := r.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got, _ := st.Get(job.ID)
	if got.Status != model.JobStatusCancelled {
		t.Errorf("cancel must stick, got %s", got.Status)
	}
	if got.Processed != 0 {
		t.Errorf("cancelled job processed %d items", got.Processed)
	}
}

func TestRunResumesOnlyUnattemptedItems(t *testing.T) {
	dir := t.TempDir()
	st := store.New(filepath.Join(dir, "out"), 0)
	src := writeSourceImage(t, dir, "a.jpg")

	job := newTestJob(t, st, []string{src, src, src}, defaultParams())
	st.MarkProcessing(job.ID)

	// First item was already completed before the interrupt.
	st.BeginItem(job.ID, 0)
	st.CompleteItem(job.ID, 0, "/already/done.png", "")

	var regenerated []string
	gen := &fakeGenerator{fn: func(req *client.GenerateImageRequest) (*client.GenerateImageResult, error) {
		regenerated = append(regenerated, req.Prompt)
		return &client.GenerateImageResult{Data: []byte("img"), MimeType: "image/png"}, nil
	}}

	r := NewRunner(st, gen, nil, nil, nil, nil, 1)
	if err := r.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(regenerated) != 2 {
		t.Errorf("expected 2 provider calls for the remaining items, got %d", len(regenerated))
	}
	got, _ := st.Get(job.ID)
	if got.Processed != 3 || got.SuccessCount != 3 {
		t.Errorf("unexpected counters after resume: %+v", got.Summary())
	}
	if got.Items[0].OutputPath != "/already/done.png" {
		t.Errorf("pre-completed item was reprocessed: %+v", got.Items[0])
	}
}

func TestRunTranslationFailureFailsItem(t *testing.T) {
	dir := t.TempDir()
	st := store.New(filepath.Join(dir, "out"), 0)
	src := writeSourceImage(t, dir, "a.jpg")

	params := defaultParams()
	params.TargetLanguage = model.LanguageZH

	job := newTestJob(t, st, []string{src}, params)
	st.MarkProcessing(job.ID)

	r := NewRunner(st, nil, &fakeTranslator{err: fmt.Errorf("quota exceeded")}, nil, nil, nil, 1)
	if err := r.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got, _ := st.Get(job.ID)
	if got.Items[0].Status != model.ItemStatusFailed {
		t.Fatalf("expected failed item, got %s", got.Items[0].Status)
	}
	if got.FailedCount != 1 {
		t.Errorf("unexpected counters: %+v", got.Summary())
	}
}

func TestRunTranslatesCopyBeforeGeneration(t *testing.T) {
	dir := t.TempDir()
	st := store.New(filepath.Join(dir, "out"), 0)
	src := writeSourceImage(t, dir, "a.jpg")

	params := defaultParams()
	params.TargetLanguage = model.LanguageZH
	params.Options.RenderText = true

	job := newTestJob(t, st, []string{src}, params)
	st.MarkProcessing(job.ID)

	var gotTitle string
	gen := &fakeGenerator{fn: func(req *client.GenerateImageRequest) (*client.GenerateImageResult, error) {
		gotTitle = req.Title
		return &client.GenerateImageResult{Data: []byte("img"), MimeType: "image/png"}, nil
	}}

	r := NewRunner(st, gen, &fakeTranslator{}, nil, nil, nil, 1)
	if err := r.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if gotTitle != "[zh] Desk Lamp" {
		t.Errorf("title not translated before generation: %q", gotTitle)
	}
}

func TestResolveSourceOutputScheme(t *testing.T) {
	dir := t.TempDir()
	outputRoot := filepath.Join(dir, "out")
	st := store.New(outputRoot, 0)

	prevDir := filepath.Join(outputRoot, "prev-job")
	if err := os.MkdirAll(prevDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(prevDir, "1_sku.png"), []byte("prev-output"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRunner(st, nil, nil, nil, nil, nil, 1)

	data, err := r.resolveSource(context.Background(), "output://prev-job/1_sku.png")
	if err != nil {
		t.Fatalf("output scheme failed: %v", err)
	}
	if string(data) != "prev-output" {
		t.Errorf("wrong bytes: %q", data)
	}

	if _, err := r.resolveSource(context.Background(), "output://../escape/file.png"); err == nil {
		t.Error("path traversal in output reference was accepted")
	}
	if _, err := r.resolveSource(context.Background(), "output://missing-parts"); err == nil {
		t.Error("malformed output reference was accepted")
	}
}
