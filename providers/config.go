package providers

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/UkraineNow-Intel/autoSA-backend/common"
	"github.com/UkraineNow-Intel/autoSA-backend/common/models"
)

// SourcesConfig is the sources.yaml file: which accounts and sites each
// provider ingests.
type SourcesConfig struct {
	TwitterAccounts  []string              `yaml:"twitter_accounts"`
	TelegramAccounts []string              `yaml:"telegram_accounts"`
	TelegramKeywords []string              `yaml:"telegram_keywords"`
	Sites            map[string]SiteConfig `yaml:"sites"`
}

// SiteConfig describes one scraped site: where its headline list lives
// and how to pull each field out of a list entry.
type SiteConfig struct {
	URL          string               `yaml:"url"`
	Language     models.Language      `yaml:"language"`
	RenderJS     bool                 `yaml:"render_js"`
	TextMarkdown bool                 `yaml:"text_markdown"`
	ItemSelector string               `yaml:"item_selector"`
	Fields       map[string]FieldRule `yaml:"fields"`
}

// FieldRule extracts one field from an item node. Three shapes are
// accepted: selector text, selector attribute, and selector text run
// through a capturing regular expression.
type FieldRule struct {
	Selector  string `yaml:"selector"`
	Attribute string `yaml:"attribute,omitempty"`
	Pattern   string `yaml:"pattern,omitempty"`
}

var siteFieldNames = map[string]bool{
	"headline":  true,
	"text":      true,
	"timestamp": true,
	"url":       true,
	"media_url": true,
}

// LoadSourcesConfig reads and validates a sources.yaml file.
func LoadSourcesConfig(path string) (SourcesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SourcesConfig{}, fmt.Errorf("reading sources config: %w", err)
	}
	return ParseSourcesConfig(data)
}

// ParseSourcesConfig parses and validates raw sources.yaml content.
func ParseSourcesConfig(data []byte) (SourcesConfig, error) {
	var cfg SourcesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SourcesConfig{}, fmt.Errorf("parsing sources config: %w", err)
	}
	for key, site := range cfg.Sites {
		if err := site.Validate(); err != nil {
			return SourcesConfig{}, fmt.Errorf("site %q: %w", key, err)
		}
	}
	return cfg, nil
}

// Validate checks the site definition against the supported extraction
// shapes. Arbitrary expressions are not a supported shape.
func (s SiteConfig) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("%w: url is required", common.ErrInvalidConfig)
	}
	if s.ItemSelector == "" {
		return fmt.Errorf("%w: item_selector is required", common.ErrInvalidConfig)
	}
	if s.Language != "" && !models.SupportedLanguage(s.Language) {
		return fmt.Errorf("%w: unsupported language %q", common.ErrInvalidConfig, s.Language)
	}
	for name, rule := range s.Fields {
		if !siteFieldNames[name] {
			return fmt.Errorf("%w: unknown field %q", common.ErrInvalidConfig, name)
		}
		if rule.Selector == "" {
			return fmt.Errorf("%w: field %q needs a selector", common.ErrInvalidConfig, name)
		}
		if rule.Attribute != "" && rule.Pattern != "" {
			return fmt.Errorf("%w: field %q sets both attribute and pattern", common.ErrInvalidConfig, name)
		}
		if rule.Pattern != "" {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return fmt.Errorf("%w: field %q pattern: %v", common.ErrInvalidConfig, name, err)
			}
			if re.NumSubexp() < 1 {
				return fmt.Errorf("%w: field %q pattern needs a capture group", common.ErrInvalidConfig, name)
			}
		}
	}
	return nil
}
