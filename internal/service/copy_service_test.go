package service

import (
	"context"
	"testing"

	"github.com/skustudio/api/internal/model"
)

func TestRewriteFallsBackToMockWithoutProvider(t *testing.T) {
	svc := NewCopyService(nil)

	resp, err := svc.Rewrite(context.Background(), &model.CopyRewriteRequest{
		Title:       "Wireless Headphones",
		StylePreset: model.StyleAmazon,
	})
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if len(resp.Titles) != 3 {
		t.Errorf("expected 3 mock titles, got %d", len(resp.Titles))
	}
}

func TestTranslateSameLanguageIsPassthrough(t *testing.T) {
	svc := NewCopyService(nil)

	resp, err := svc.Translate(context.Background(), &model.CopyTranslateRequest{
		Text:           "Wireless Headphones",
		TargetLanguage: model.LanguageEN,
	})
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if resp.Text != "Wireless Headphones" {
		t.Errorf("same-language input must pass through: %q", resp.Text)
	}
	if resp.SourceLanguage != model.LanguageEN {
		t.Errorf("detected language wrong: %s", resp.SourceLanguage)
	}
}

func TestTranslateDetectsSourceLanguage(t *testing.T) {
	svc := NewCopyService(nil)

	resp, err := svc.Translate(context.Background(), &model.CopyTranslateRequest{
		Text:           "无线蓝牙耳机",
		TargetLanguage: model.LanguageEN,
	})
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if resp.SourceLanguage != model.LanguageZH {
		t.Errorf("expected detected zh, got %s", resp.SourceLanguage)
	}
	if resp.Text == "" {
		t.Error("mock translation returned empty text")
	}
}

func TestParseTitles(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"clean json", `{"titles": ["One", "Two", "Three"]}`, 3, false},
		{"fenced json", "```json\n{\"titles\": [\"One\"]}\n```", 1, false},
		{"chatter around json", `Sure! Here you go: {"titles": ["One", "Two"]} Hope that helps.`, 2, false},
		{"blank entries dropped", `{"titles": ["One", "  ", ""]}`, 1, false},
		{"empty array", `{"titles": []}`, 0, true},
		{"not json", `no structure here`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			titles, err := parseTitles(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", titles)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(titles) != tt.want {
				t.Errorf("expected %d titles, got %v", tt.want, titles)
			}
		})
	}
}
