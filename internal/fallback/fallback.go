// Package fallback builds playable game documents locally, without any
// network access. It is the always-available path of the synthesis pipeline.
package fallback

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html.tmpl"))

// Variant identifies one of the fixed procedural mini-games
type Variant int

const (
	VariantCollector Variant = iota
	VariantPong
	VariantFlappy
)

func (v Variant) String() string {
	switch v {
	case VariantPong:
		return "pong"
	case VariantFlappy:
		return "flappy"
	default:
		return "generic-collector"
	}
}

func (v Variant) templateName() string {
	switch v {
	case VariantPong:
		return "pong.html.tmpl"
	case VariantFlappy:
		return "flappy.html.tmpl"
	default:
		return "collector.html.tmpl"
	}
}

type rule struct {
	keyword string
	variant Variant
}

// rules is evaluated in order; the first keyword found wins.
var rules = []rule{
	{keyword: "pong", variant: VariantPong},
	{keyword: "flappy", variant: VariantFlappy},
}

// Select classifies idea text into a variant
func Select(idea string) Variant {
	lower := strings.ToLower(idea)
	for _, r := range rules {
		if strings.Contains(lower, r.keyword) {
			return r.variant
		}
	}
	return VariantCollector
}

type templateData struct {
	Label string
}

// Render produces the complete document for idea. The error is non-nil only
// when a template fails to execute.
func Render(idea string) (string, Variant, error) {
	variant := Select(idea)

	var buf bytes.Buffer
	data := templateData{Label: jsLabel(idea)}
	if err := templates.ExecuteTemplate(&buf, variant.templateName(), data); err != nil {
		return "", variant, fmt.Errorf("render %s template: %w", variant, err)
	}
	return buf.String(), variant, nil
}

var labelReplacer = strings.NewReplacer(
	"'", "",
	`\`, `\\`,
	"\r", " ",
	"\n", " ",
	"\u2028", " ",
	"\u2029", " ",
	"<", `\x3c`,
)

// jsLabel makes idea safe to place inside a single-quoted script string
func jsLabel(idea string) string {
	return labelReplacer.Replace(idea)
}
