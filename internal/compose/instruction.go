package compose

import (
	"fmt"
	"strings"
)

// SceneSize is the pixel size of the scene canvas.
type SceneSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MaxSceneSide bounds each scene dimension; larger sizes are treated as unknown.
const MaxSceneSide = 8192

// Known reports whether both sides are positive and within MaxSceneSide.
func (s *SceneSize) Known() bool {
	return s != nil &&
		s.Width > 0 && s.Height > 0 &&
		s.Width <= MaxSceneSide && s.Height <= MaxSceneSide
}

// Template turns a user prompt into the instruction text. CanvasDirective is
// a format string taking width and height.
type Template struct {
	Name            string
	CanvasDirective string
	Rules           []string
}

const (
	TemplateScene     = "scene"
	TemplatePlacement = "placement"
)

var templates = map[string]Template{
	TemplateScene: {
		Name:            TemplateScene,
		CanvasDirective: "Keep the canvas exactly %dx%d pixels.",
		Rules: []string{
			"Keep all existing objects, furniture and decor exactly the same.",
			"When applying wallpaper or floor changes, also update cabinet compartments and shelf sections.",
			"Do not resize, crop or pad the base image.",
			"Do not stretch patterns, use natural repetition.",
			"Maintain original camera perspective and image dimensions.",
		},
	},
	TemplatePlacement: {
		Name:            TemplatePlacement,
		CanvasDirective: "Keep the canvas exactly %dx%d pixels.",
		Rules: []string{
			"Use the first image as the base canvas. Do NOT resize, crop or pad it.",
			"Use the following images only as products to insert.",
			"Place them on the rug, match perspective and scale with the room, add a realistic drop shadow,",
			"and change nothing else in the scene.",
		},
	},
}

// Lookup returns a built-in template by name.
func Lookup(name string) (Template, error) {
	t, ok := templates[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Template{}, fmt.Errorf("unknown instruction template %q", name)
	}
	return t, nil
}

func DefaultTemplate() Template {
	return templates[TemplateScene]
}

// Compose joins the trimmed prompt, the canvas directive (only when the size
// is known) and the fixed rules into one instruction.
func (t Template) Compose(prompt string, size *SceneSize) string {
	segments := make([]string, 0, 2+len(t.Rules))
	if p := strings.TrimSpace(prompt); p != "" {
		segments = append(segments, p)
	}
	if size.Known() && t.CanvasDirective != "" {
		segments = append(segments, fmt.Sprintf(t.CanvasDirective, size.Width, size.Height))
	}
	segments = append(segments, t.Rules...)
	return strings.TrimSpace(strings.Join(segments, " "))
}
