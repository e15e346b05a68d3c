package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/skustudio/api/internal/model"
	"github.com/skustudio/api/internal/store"
	"github.com/skustudio/api/internal/worker"
)

func newTestService(t *testing.T) (*BatchService, *store.Store) {
	t.Helper()
	st := store.New(t.TempDir(), 0)
	runner := worker.NewRunner(st, nil, nil, nil, nil, nil, 2)
	return NewBatchService(st, nil, runner), st
}

func createRequest(rows ...model.ItemRow) *model.BatchCreateRequest {
	return &model.BatchCreateRequest{
		Items:       rows,
		StylePreset: model.StyleShein,
	}
}

func TestCreateJobDropsRowsWithoutImage(t *testing.T) {
	svc, _ := newTestService(t)

	resp, err := svc.CreateJob(createRequest(
		model.ItemRow{ID: "a", ImageURL: "https://x/a.jpg", Title: " Lamp "},
		model.ItemRow{ID: "b", ImageURL: "   "},
		model.ItemRow{ImageURL: "https://x/c.jpg"},
	))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if resp.Total != 2 || resp.Dropped != 1 {
		t.Errorf("expected 2 kept / 1 dropped, got %d/%d", resp.Total, resp.Dropped)
	}

	job, err := svc.GetJob(resp.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if job.Items[0].Title != "Lamp" {
		t.Errorf("title not trimmed: %q", job.Items[0].Title)
	}
	if job.Items[1].ID != "item-3" {
		t.Errorf("missing id not defaulted from position: %q", job.Items[1].ID)
	}
	if job.Params.AspectRatio != model.Ratio1x1 {
		t.Errorf("aspect ratio not defaulted: %q", job.Params.AspectRatio)
	}
	if job.Params.TargetLanguage != model.LanguageSame {
		t.Errorf("target language not defaulted: %q", job.Params.TargetLanguage)
	}
}

func TestCreateJobRejectsAllDroppedRows(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateJob(createRequest(model.ItemRow{ID: "a"}, model.ItemRow{ID: "b"}))
	if !errors.Is(err, ErrNoUsableItems) {
		t.Errorf("expected ErrNoUsableItems, got %v", err)
	}
}

func TestStartJobIsIdempotent(t *testing.T) {
	svc, st := newTestService(t)

	src := filepath.Join(t.TempDir(), "a.jpg")
	if err := os.WriteFile(src, []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}
	created, err := svc.CreateJob(createRequest(model.ItemRow{ID: "a", ImageURL: src}))
	if err != nil {
		t.Fatal(err)
	}

	first, err := svc.StartJob(context.Background(), created.JobID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if first.Status != model.JobStatusProcessing {
		t.Errorf("expected processing, got %s", first.Status)
	}

	// Wait for the in-process run to finish, then start again.
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, _ := st.Get(created.JobID)
		if job.Status.IsTerminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never finished: %s", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	again, err := svc.StartJob(context.Background(), created.JobID)
	if err != nil {
		t.Fatalf("restart errored: %v", err)
	}
	if again.Status != model.JobStatusCompleted {
		t.Errorf("restarting a finished job must report its status, got %s", again.Status)
	}
}

func TestStartJobUnknownID(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.StartJob(context.Background(), "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestCancelJobUnknownID(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.CancelJob("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

// seedCompleted builds a job whose items are already in their final
// states, with real output files on disk for the successful ones.
func seedCompleted(t *testing.T, st *store.Store, ids []string, failed map[int]bool) *model.Job {
	t.Helper()
	items := make([]model.Item, len(ids))
	for i, id := range ids {
		items[i] = model.Item{ID: id, ImageURL: "https://x/a.jpg", Status: model.ItemStatusPending}
	}
	job, err := st.Create(items, model.JobParams{StylePreset: model.StylePlain, AspectRatio: model.Ratio1x1})
	if err != nil {
		t.Fatal(err)
	}
	st.MarkProcessing(job.ID)

	for i := range ids {
		st.BeginItem(job.ID, i)
		if failed[i] {
			st.FailItem(job.ID, i, "boom")
			continue
		}
		path := filepath.Join(job.OutputDir, "out_"+ids[i]+"_"+string(rune('0'+i))+".png")
		if err := os.WriteFile(path, []byte("image-"+ids[i]), 0o644); err != nil {
			t.Fatal(err)
		}
		st.CompleteItem(job.ID, i, path, "")
	}
	st.FinishJob(job.ID)

	full, _ := st.Get(job.ID)
	return full
}

func readZip(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("not a valid zip: %v", err)
	}
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestDownloadResultsFullJob(t *testing.T) {
	svc, st := newTestService(t)
	job := seedCompleted(t, st, []string{"a", "b"}, nil)

	filename, data, err := svc.DownloadResults(job.ID)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if strings.Contains(filename, "partial") {
		t.Errorf("complete job must not be marked partial: %s", filename)
	}
	if !strings.HasSuffix(filename, ".zip") {
		t.Errorf("unexpected filename: %s", filename)
	}

	names := readZip(t, data)
	if len(names) != 2 {
		t.Fatalf("expected 2 entries, got %v", names)
	}
}

func TestDownloadResultsPartialNaming(t *testing.T) {
	svc, st := newTestService(t)
	job := seedCompleted(t, st, []string{"a", "b", "c"}, map[int]bool{1: true})

	filename, data, err := svc.DownloadResults(job.ID)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if !strings.Contains(filename, "_partial") {
		t.Errorf("job with failures must produce a partial archive name: %s", filename)
	}
	if names := readZip(t, data); len(names) != 2 {
		t.Errorf("failed items must be excluded, got %v", names)
	}
}

func TestDownloadResultsDeduplicatesNames(t *testing.T) {
	svc, st := newTestService(t)
	job := seedCompleted(t, st, []string{"dup", "dup", "dup"}, nil)

	_, data, err := svc.DownloadResults(job.ID)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}

	names := readZip(t, data)
	want := map[string]bool{"dup.png": true, "dup_2.png": true, "dup_3.png": true}
	for _, name := range names {
		if !want[name] {
			t.Errorf("unexpected entry name %q in %v", name, names)
		}
		delete(want, name)
	}
	if len(want) != 0 {
		t.Errorf("missing deduplicated entries: %v", want)
	}
}

func TestDownloadResultsNoSuccesses(t *testing.T) {
	svc, st := newTestService(t)
	job := seedCompleted(t, st, []string{"a"}, map[int]bool{0: true})

	_, _, err := svc.DownloadResults(job.ID)
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("expected ErrNoResults, got %v", err)
	}
}
