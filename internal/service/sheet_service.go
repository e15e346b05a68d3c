package service

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/skustudio/api/internal/model"
)

// ErrNoRows is returned when a spreadsheet yields zero usable rows.
var ErrNoRows = errors.New("no usable rows in sheet")

// SheetService parses uploaded product spreadsheets and builds
// XLSX exports (templates and per-job reports).
type SheetService struct{}

// NewSheetService creates a new sheet service
func NewSheetService() *SheetService {
	return &SheetService{}
}

// headerAliases maps normalized header cells to item fields. Merchants
// export from several tools, so each field accepts a few spellings.
var headerAliases = map[string]string{
	"id":        "id",
	"sku":       "id",
	"sku id":    "id",
	"image":     "image",
	"image url": "image",
	"image_url": "image",
	"imageurl":  "image",
	"img":       "image",
	"title":     "title",
	"name":      "title",
	"product":   "title",
	"subtitle":  "subtitle",
	"sub title": "subtitle",
	"tagline":   "subtitle",
}

// Parse reads the first sheet of an XLSX upload into item rows. Rows
// without an image URL are counted as skipped rather than failing the
// whole upload.
func (s *SheetService) Parse(r io.Reader) (*model.SheetParseResponse, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoRows
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, ErrNoRows
	}

	columns := mapColumns(rows[0])
	if _, ok := columns["image"]; !ok {
		return nil, fmt.Errorf("sheet has no image column (header row: %v)", rows[0])
	}

	resp := &model.SheetParseResponse{}
	for _, row := range rows[1:] {
		item := model.ItemRow{
			ID:       cell(row, columns, "id"),
			ImageURL: cell(row, columns, "image"),
			Title:    cell(row, columns, "title"),
			Subtitle: cell(row, columns, "subtitle"),
		}
		if item.ImageURL == "" {
			if item.ID != "" || item.Title != "" {
				resp.Skipped++
			}
			continue
		}
		resp.Items = append(resp.Items, item)
	}

	if len(resp.Items) == 0 {
		return nil, ErrNoRows
	}
	return resp, nil
}

// BuildTemplate produces an empty upload template with the canonical
// header row and one example row.
func (s *SheetService) BuildTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headers := []string{"SKU", "Image URL", "Title", "Subtitle"}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetCellValue(sheet, col+"1", h)
	}
	f.SetCellValue(sheet, "A2", "SKU-001")
	f.SetCellValue(sheet, "B2", "https://example.com/product.jpg")
	f.SetCellValue(sheet, "C2", "Wireless Headphones")
	f.SetCellValue(sheet, "D2", "Noise cancelling, 30h battery")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write template: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildReport renders a per-item result report for a job: one row per
// item with its outcome, output file, and failure reason if any.
func (s *SheetService) BuildReport(job *model.Job) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	f.SetSheetName(sheet, "Report")
	sheet = "Report"

	headers := []string{"SKU", "Image URL", "Title", "Status", "Output", "Error"}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetCellValue(sheet, col+"1", h)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		f.SetRowStyle(sheet, 1, 1, style)
	}

	for i, item := range job.Items {
		row := i + 2
		output := item.OutputURL
		if output == "" {
			output = item.OutputPath
		}
		values := []interface{}{item.ID, item.ImageURL, item.Title, string(item.Status), output, item.Error}
		for j, v := range values {
			col, _ := excelize.ColumnNumberToName(j + 1)
			f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	return buf.Bytes(), nil
}

func mapColumns(header []string) map[string]int {
	columns := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if field, ok := headerAliases[key]; ok {
			if _, taken := columns[field]; !taken {
				columns[field] = i
			}
		}
	}
	return columns
}

func cell(row []string, columns map[string]int, field string) string {
	idx, ok := columns[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
