package usecase

import (
	"regexp"
	"strings"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
)

var (
	// Leading run of anything that is not a letter, digit or underscore (bullets, emoji)
	decorationPattern = regexp.MustCompile(`^[^\p{L}\p{N}_]+`)
	// Parenthetical annotations such as "(Ölü)"
	annotationPattern = regexp.MustCompile(`\([^)]*\)`)
)

// ExtractorConfig contains field extraction settings
type ExtractorConfig struct {
	Banner      string            // Header lines containing this phrase are discarded
	Icons       map[string]string // Label -> icon, exact match
	DefaultIcon string
	MotherIcon  string
	FatherIcon  string
}

// DefaultExtractorConfig returns the built-in extraction settings
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Banner: "SORGU SONUCU",
		Icons: map[string]string{
			"Ad":           "👤",
			"Soyad":        "👤",
			"Doğum Tarihi": "📅",
			"Doğum Yeri":   "📍",
			"Cinsiyet":     "⚧",
			"Medeni Hal":   "💑",
			"Nüfus İl":     "🏙",
			"Nüfus İlçe":   "🏘",
			"Kimlik No":    "🆔",
		},
		DefaultIcon: "📝",
		MotherIcon:  "👩",
		FatherIcon:  "👨",
	}
}

// FieldExtractor parses responder replies into labeled fields
type FieldExtractor struct {
	config ExtractorConfig
}

// NewFieldExtractor creates a new field extractor
func NewFieldExtractor(config ExtractorConfig) *FieldExtractor {
	defaults := DefaultExtractorConfig()
	if config.Banner == "" {
		config.Banner = defaults.Banner
	}
	if config.Icons == nil {
		config.Icons = defaults.Icons
	}
	if config.DefaultIcon == "" {
		config.DefaultIcon = defaults.DefaultIcon
	}
	if config.MotherIcon == "" {
		config.MotherIcon = defaults.MotherIcon
	}
	if config.FatherIcon == "" {
		config.FatherIcon = defaults.FatherIcon
	}
	return &FieldExtractor{config: config}
}

// Extract parses raw reply text.
// Callers must treat an empty extraction as a parse failure.
func (x *FieldExtractor) Extract(raw string) domain.Extraction {
	var out domain.Extraction

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, x.config.Banner) {
			continue
		}

		line = stripDecoration(line)

		switch {
		case strings.HasPrefix(line, "Anne:"):
			out.Add(domain.ExtractedField{Label: "Anne", Value: parentName(line), Icon: x.config.MotherIcon})
		case strings.HasPrefix(line, "Baba:"):
			out.Add(domain.ExtractedField{Label: "Baba", Value: parentName(line), Icon: x.config.FatherIcon})
		case strings.Contains(line, ":"):
			label, value, _ := strings.Cut(line, ":")
			label = cleanField(label)
			out.Add(domain.ExtractedField{Label: label, Value: cleanField(value), Icon: x.icon(label)})
		}
	}

	return out
}

func (x *FieldExtractor) icon(label string) string {
	if icon, ok := x.config.Icons[label]; ok {
		return icon
	}
	return x.config.DefaultIcon
}

// parentName drops the maiden name suffix after the first hyphen
func parentName(line string) string {
	_, value, _ := strings.Cut(line, ":")
	name, _, _ := strings.Cut(value, "-")
	return cleanField(strings.TrimSpace(name))
}

func cleanField(text string) string {
	return strings.TrimSpace(annotationPattern.ReplaceAllString(text, ""))
}

func stripDecoration(text string) string {
	return strings.TrimSpace(decorationPattern.ReplaceAllString(text, ""))
}
