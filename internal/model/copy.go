package model

// CopyRewriteRequest asks for marketplace-styled product titles.
type CopyRewriteRequest struct {
	Title       string      `json:"title" validate:"required,max=500"`
	StylePreset StylePreset `json:"stylePreset" validate:"required"`
	Language    Language    `json:"language,omitempty"`
	Keywords    []string    `json:"keywords,omitempty" validate:"max=10"`
}

// CopyRewriteResponse carries rewritten title candidates.
type CopyRewriteResponse struct {
	Titles []string `json:"titles"`
}

// CopyTranslateRequest translates product copy.
type CopyTranslateRequest struct {
	Text           string   `json:"text" validate:"required,max=2000"`
	SourceLanguage Language `json:"sourceLanguage,omitempty"`
	TargetLanguage Language `json:"targetLanguage" validate:"required"`
}

// CopyTranslateResponse carries the translated text and the language
// that was detected (or supplied) for the source.
type CopyTranslateResponse struct {
	Text           string   `json:"text"`
	SourceLanguage Language `json:"sourceLanguage"`
}
