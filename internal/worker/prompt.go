package worker

import (
	"fmt"
	"strings"

	"github.com/skustudio/api/internal/model"
)

// stylePrompts maps each preset to the base art direction handed to the
// image provider. Unknown presets fall back to plain.
var stylePrompts = map[model.StylePreset]string{
	model.StyleShein: "Trendy fast-fashion product shot. Soft pastel backdrop, " +
		"bright even studio lighting, slight top-down angle, clean and aspirational.",
	model.StyleAmazon: "Marketplace listing hero image. Pure white background, " +
		"product centered and fully visible, neutral shadows, no props or text overlays.",
	model.StyleTemu: "Value-focused promotional shot. Vivid saturated colors, " +
		"bold high-contrast lighting, energetic composition that pops in a crowded feed.",
	model.StyleLazada: "Southeast-Asia marketplace style. Warm lighting, subtle " +
		"gradient backdrop, lifestyle-adjacent framing with the product dominant.",
	model.StylePlain: "Neutral catalog photograph. Plain light-gray background, " +
		"diffuse lighting, true-to-life colors, no styling.",
}

// ComposePrompt builds the provider prompt for one item. The output is
// deterministic: identical params and copy always produce the same text,
// so reruns after an interrupt regenerate identical images.
func ComposePrompt(params model.JobParams, title, subtitle string) string {
	base, ok := stylePrompts[params.StylePreset]
	if !ok {
		base = stylePrompts[model.StylePlain]
	}

	var b strings.Builder
	b.WriteString(base)

	if params.Options.Background != "" {
		fmt.Fprintf(&b, " Background: %s.", params.Options.Background)
	}
	if params.Options.Scene != "" {
		fmt.Fprintf(&b, " Scene: %s.", params.Options.Scene)
	}

	if params.Options.RenderText {
		if title != "" {
			fmt.Fprintf(&b, " Render the headline %q on the image.", title)
		}
		if subtitle != "" {
			fmt.Fprintf(&b, " Render the subheadline %q below it.", subtitle)
		}
	} else {
		b.WriteString(" Do not render any text on the image.")
	}

	if params.Requirements != "" {
		fmt.Fprintf(&b, " Additional requirements: %s", strings.TrimSpace(params.Requirements))
	}

	return b.String()
}
