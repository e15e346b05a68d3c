package model

// Job status
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusProcessing  JobStatus = "processing"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCancelled   JobStatus = "cancelled"
	JobStatusInterrupted JobStatus = "interrupted"
)

// IsTerminal reports whether the status can never change again.
// Interrupted jobs are not terminal: they may be restarted.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Item status
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusSuccess    ItemStatus = "success"
	ItemStatusFailed     ItemStatus = "failed"
)

// IsTerminal reports whether the item has been attempted.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusSuccess || s == ItemStatusFailed
}

// Style presets
type StylePreset string

const (
	StyleShein  StylePreset = "shein"
	StyleAmazon StylePreset = "amazon"
	StyleTemu   StylePreset = "temu"
	StyleLazada StylePreset = "lazada"
	StylePlain  StylePreset = "plain"
)

var ValidStylePresets = []StylePreset{
	StyleShein, StyleAmazon, StyleTemu, StyleLazada, StylePlain,
}

// Languages
type Language string

const (
	LanguageEN Language = "en"
	LanguageZH Language = "zh"
	LanguageTH Language = "th"

	// LanguageSame disables translation: copy ships in whatever
	// language the source row carries.
	LanguageSame Language = "same"
)

// Aspect ratios
type AspectRatio string

const (
	Ratio1x1  AspectRatio = "1:1"
	Ratio3x4  AspectRatio = "3:4"
	Ratio4x3  AspectRatio = "4:3"
	Ratio9x16 AspectRatio = "9:16"
	Ratio16x9 AspectRatio = "16:9"
)

var ValidAspectRatios = []AspectRatio{
	Ratio1x1, Ratio3x4, Ratio4x3, Ratio9x16, Ratio16x9,
}
