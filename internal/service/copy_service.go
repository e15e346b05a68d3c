package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/skustudio/api/internal/client"
	"github.com/skustudio/api/internal/lang"
	"github.com/skustudio/api/internal/model"
)

// CopyService rewrites and translates product copy via the chat
// provider. When no provider is configured it falls back to mock
// output so the rest of the pipeline stays testable.
type CopyService struct {
	llm *client.LLMClient
}

// NewCopyService creates a new copy service
func NewCopyService(llm *client.LLMClient) *CopyService {
	return &CopyService{llm: llm}
}

// Rewrite generates marketplace-styled title candidates for a product.
func (s *CopyService) Rewrite(ctx context.Context, req *model.CopyRewriteRequest) (*model.CopyRewriteResponse, error) {
	if s.llm == nil || !s.llm.IsConfigured() {
		log.Println("LLM client not configured, using mock titles")
		return s.rewriteWithMock(req), nil
	}

	system := s.buildRewriteSystemPrompt(req)
	user := fmt.Sprintf("Product title: %s", req.Title)
	if len(req.Keywords) > 0 {
		user += fmt.Sprintf("\nKeywords to include: %s", strings.Join(req.Keywords, ", "))
	}

	content, err := s.llm.ChatCompletion(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite title: %w", err)
	}

	titles, err := parseTitles(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rewrite response: %w", err)
	}

	return &model.CopyRewriteResponse{Titles: titles}, nil
}

// Translate translates product copy. The source language is detected
// from the text when the caller does not supply one.
func (s *CopyService) Translate(ctx context.Context, req *model.CopyTranslateRequest) (*model.CopyTranslateResponse, error) {
	source := req.SourceLanguage
	if source == "" {
		source = lang.Detect(req.Text)
	}

	if source == req.TargetLanguage {
		return &model.CopyTranslateResponse{Text: req.Text, SourceLanguage: source}, nil
	}

	if s.llm == nil || !s.llm.IsConfigured() {
		log.Println("LLM client not configured, using mock translation")
		return &model.CopyTranslateResponse{
			Text:           fmt.Sprintf("[%s] %s", req.TargetLanguage, req.Text),
			SourceLanguage: source,
		}, nil
	}

	out, err := s.llm.Translate(ctx, req.Text, source, req.TargetLanguage)
	if err != nil {
		return nil, fmt.Errorf("failed to translate copy: %w", err)
	}

	return &model.CopyTranslateResponse{Text: out, SourceLanguage: source}, nil
}

func (s *CopyService) buildRewriteSystemPrompt(req *model.CopyRewriteRequest) string {
	tone := map[model.StylePreset]string{
		model.StyleShein:  "trendy, youthful, fashion-forward",
		model.StyleAmazon: "factual, keyword-dense, search-optimized",
		model.StyleTemu:   "urgent, value-driven, deal-focused",
		model.StyleLazada: "warm, benefit-led, region-friendly",
		model.StylePlain:  "plain and descriptive",
	}[req.StylePreset]
	if tone == "" {
		tone = "plain and descriptive"
	}

	language := "the same language as the input"
	if req.Language != "" && req.Language != model.LanguageSame {
		language = languageLabel(req.Language)
	}

	return fmt.Sprintf(`You are an e-commerce listing copywriter.
Rewrite the product title in a %s tone, in %s.
Return a JSON object of the form {"titles": ["...", "...", "..."]} with exactly 3 candidates.
Do not include anything outside the JSON object.`, tone, language)
}

func (s *CopyService) rewriteWithMock(req *model.CopyRewriteRequest) *model.CopyRewriteResponse {
	base := strings.TrimSpace(req.Title)
	return &model.CopyRewriteResponse{
		Titles: []string{
			fmt.Sprintf("%s - %s pick", base, req.StylePreset),
			fmt.Sprintf("New: %s", base),
			fmt.Sprintf("%s (bestseller)", base),
		},
	}
}

// parseTitles pulls the titles array out of the model response,
// tolerating markdown fences and leading chatter around the JSON.
func parseTitles(content string) ([]string, error) {
	raw := extractJSON(content)

	var payload struct {
		Titles []string `json:"titles"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("invalid JSON in response: %w", err)
	}

	titles := make([]string, 0, len(payload.Titles))
	for _, t := range payload.Titles {
		if t = strings.TrimSpace(t); t != "" {
			titles = append(titles, t)
		}
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("no titles in response")
	}
	return titles, nil
}

// extractJSON finds the first balanced JSON object in the content.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return content
	}
	return content[start : end+1]
}

func languageLabel(l model.Language) string {
	switch l {
	case model.LanguageZH:
		return "Chinese"
	case model.LanguageTH:
		return "Thai"
	default:
		return "English"
	}
}
