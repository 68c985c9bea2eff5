package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/usecase"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/service"
)

// TextsConfig contains all user-visible texts loaded from YAML
type TextsConfig struct {
	Notices   NoticeTexts       `yaml:"notices"`
	Result    ResultTexts       `yaml:"result"`
	Responder ResponderTexts    `yaml:"responder"`
	Icons     map[string]string `yaml:"icons"`
}

// NoticeTexts contains short notices sent to group chats
type NoticeTexts struct {
	TooShort       string `yaml:"too_short"`
	DispatchFailed string `yaml:"dispatch_failed"`
	NoMatch        string `yaml:"no_match"`
	ParseFailed    string `yaml:"parse_failed"`
	Copied         string `yaml:"copied"` // {{value}} is replaced
}

// ResultTexts contains formatted result texts
type ResultTexts struct {
	Header      string `yaml:"header"`
	ActionLabel string `yaml:"action_label"` // {{label}} is replaced
	DefaultIcon string `yaml:"default_icon"`
	MotherIcon  string `yaml:"mother_icon"`
	FatherIcon  string `yaml:"father_icon"`
}

// ResponderTexts describes the responder bot's conversation
type ResponderTexts struct {
	Command       string `yaml:"command"` // {{key}} is replaced
	Banner        string `yaml:"banner"`
	NoMatchPhrase string `yaml:"no_match_phrase"`
}

// LoadTexts loads texts from a YAML file
func LoadTexts(configPath string) (*TextsConfig, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/texts.yaml",
			"/etc/tg-sorgu-bridge/texts.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "texts.yaml"))
		}
	}

	var data []byte
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data = b
			break
		}
	}

	if data == nil {
		return DefaultTextsConfig(), nil
	}

	var config TextsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return DefaultTextsConfig(), fmt.Errorf("failed to parse texts.yaml: %w", err)
	}

	config.fillDefaults()
	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *TextsConfig) fillDefaults() {
	defaults := DefaultTextsConfig()

	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}

	fill(&c.Notices.TooShort, defaults.Notices.TooShort)
	fill(&c.Notices.DispatchFailed, defaults.Notices.DispatchFailed)
	fill(&c.Notices.NoMatch, defaults.Notices.NoMatch)
	fill(&c.Notices.ParseFailed, defaults.Notices.ParseFailed)
	fill(&c.Notices.Copied, defaults.Notices.Copied)

	fill(&c.Result.Header, defaults.Result.Header)
	fill(&c.Result.ActionLabel, defaults.Result.ActionLabel)
	fill(&c.Result.DefaultIcon, defaults.Result.DefaultIcon)
	fill(&c.Result.MotherIcon, defaults.Result.MotherIcon)
	fill(&c.Result.FatherIcon, defaults.Result.FatherIcon)

	fill(&c.Responder.Command, defaults.Responder.Command)
	fill(&c.Responder.Banner, defaults.Responder.Banner)
	fill(&c.Responder.NoMatchPhrase, defaults.Responder.NoMatchPhrase)

	// Icons from YAML extend the built-in table
	icons := defaults.Icons
	for label, icon := range c.Icons {
		icons[label] = icon
	}
	c.Icons = icons
}

// ToExtractorConfig converts to field extraction configuration
func (c *TextsConfig) ToExtractorConfig() usecase.ExtractorConfig {
	return usecase.ExtractorConfig{
		Banner:      c.Responder.Banner,
		Icons:       c.Icons,
		DefaultIcon: c.Result.DefaultIcon,
		MotherIcon:  c.Result.MotherIcon,
		FatherIcon:  c.Result.FatherIcon,
	}
}

// ToRouterTexts converts to router texts
func (c *TextsConfig) ToRouterTexts() service.RouterTexts {
	return service.RouterTexts{
		TooShort:       c.Notices.TooShort,
		DispatchFailed: c.Notices.DispatchFailed,
		NoMatch:        c.Notices.NoMatch,
		ParseFailed:    c.Notices.ParseFailed,
		Copied:         c.Notices.Copied,
		ResultHeader:   c.Result.Header,
		ActionLabel:    c.Result.ActionLabel,
		Command:        c.Responder.Command,
		NoMatchPhrase:  c.Responder.NoMatchPhrase,
	}
}

// DefaultTextsConfig returns the default texts
func DefaultTextsConfig() *TextsConfig {
	extractor := usecase.DefaultExtractorConfig()
	router := service.DefaultRouterTexts()

	icons := make(map[string]string, len(extractor.Icons))
	for label, icon := range extractor.Icons {
		icons[label] = icon
	}

	return &TextsConfig{
		Notices: NoticeTexts{
			TooShort:       router.TooShort,
			DispatchFailed: router.DispatchFailed,
			NoMatch:        router.NoMatch,
			ParseFailed:    router.ParseFailed,
			Copied:         router.Copied,
		},
		Result: ResultTexts{
			Header:      router.ResultHeader,
			ActionLabel: router.ActionLabel,
			DefaultIcon: extractor.DefaultIcon,
			MotherIcon:  extractor.MotherIcon,
			FatherIcon:  extractor.FatherIcon,
		},
		Responder: ResponderTexts{
			Command:       router.Command,
			Banner:        extractor.Banner,
			NoMatchPhrase: router.NoMatchPhrase,
		},
		Icons: icons,
	}
}
