package model

import "time"

// Job represents one batch run over a set of spreadsheet-derived items
// sharing generation parameters.
type Job struct {
	ID           string    `json:"id"`
	Status       JobStatus `json:"status"`
	Items        []Item    `json:"items"`
	Total        int       `json:"total"`
	Processed    int       `json:"processed"`
	SuccessCount int       `json:"successCount"`
	FailedCount  int       `json:"failedCount"`
	OutputDir    string    `json:"outputDir"`
	Params       JobParams `json:"params"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// JobParams are the generation parameters captured at creation time.
// They never change after the job is created.
type JobParams struct {
	StylePreset    StylePreset       `json:"stylePreset"`
	Options        GenerationOptions `json:"options"`
	Requirements   string            `json:"requirements,omitempty"`
	TargetLanguage Language          `json:"targetLanguage,omitempty"`
	AspectRatio    AspectRatio       `json:"aspectRatio"`
}

// GenerationOptions tune how the provider composes the image.
type GenerationOptions struct {
	RenderText bool   `json:"renderText"`
	Background string `json:"background,omitempty"`
	Scene      string `json:"scene,omitempty"`
}

// Item is one row/SKU within a job, tracked independently to
// success or failure.
type Item struct {
	ID         string     `json:"id"`
	ImageURL   string     `json:"imageUrl"`
	Title      string     `json:"title,omitempty"`
	Subtitle   string     `json:"subtitle,omitempty"`
	Status     ItemStatus `json:"status"`
	OutputPath string     `json:"outputPath,omitempty"`
	OutputURL  string     `json:"outputUrl,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Clone returns a deep copy safe to hand to readers while the
// runner keeps mutating the original.
func (j *Job) Clone() *Job {
	c := *j
	c.Items = make([]Item, len(j.Items))
	copy(c.Items, j.Items)
	return &c
}

// Summary projects the job without item-level detail.
func (j *Job) Summary() JobSummary {
	return JobSummary{
		ID:           j.ID,
		Status:       j.Status,
		Total:        j.Total,
		Processed:    j.Processed,
		SuccessCount: j.SuccessCount,
		FailedCount:  j.FailedCount,
		StylePreset:  j.Params.StylePreset,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

// JobSummary is the item-free projection returned by list endpoints.
type JobSummary struct {
	ID           string      `json:"id"`
	Status       JobStatus   `json:"status"`
	Total        int         `json:"total"`
	Processed    int         `json:"processed"`
	SuccessCount int         `json:"successCount"`
	FailedCount  int         `json:"failedCount"`
	StylePreset  StylePreset `json:"stylePreset"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// ItemRow is one raw spreadsheet row as submitted by the caller,
// before normalization.
type ItemRow struct {
	ID       string `json:"id,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
}

// BatchCreateRequest creates a new batch job.
type BatchCreateRequest struct {
	Items          []ItemRow         `json:"items" validate:"required,min=1"`
	StylePreset    StylePreset       `json:"stylePreset" validate:"required"`
	Options        GenerationOptions `json:"options"`
	Requirements   string            `json:"requirements,omitempty" validate:"max=2000"`
	TargetLanguage Language          `json:"targetLanguage,omitempty"`
	AspectRatio    AspectRatio       `json:"aspectRatio,omitempty"`
}

// BatchCreateResponse is returned on successful job creation.
type BatchCreateResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	Total     int       `json:"total"`
	Dropped   int       `json:"dropped"`
	CreatedAt time.Time `json:"createdAt"`
}

// BatchStartResponse is returned when a job is (re)started.
type BatchStartResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// BatchCancelResponse is returned from cancel calls; for jobs that
// already reached a terminal state it carries that state unchanged.
type BatchCancelResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// SheetParseResponse is returned from spreadsheet parsing.
type SheetParseResponse struct {
	Items   []ItemRow `json:"items"`
	Skipped int       `json:"skipped"`
}
