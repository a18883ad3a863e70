package syncrules

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/openmined/dirsync/internal/dirsync"
	"gopkg.in/yaml.v3"
)

var ErrInvalidRule = errors.New("invalid rule")

// RuleConfig is the YAML rule file format. The CLI merges its flags into it.
//
//	ignore: ["*.bak", "node_modules/"]
//	include: ["**/*.go", "**/*.md"]
//	exclude: ["vendor/**"]
//	maxSize: 100MB
//	allowExt: [go, md]
//	denyExt: [exe]
type RuleConfig struct {
	NoDefaultIgnore bool     `yaml:"noDefaultIgnore"`
	Ignore          []string `yaml:"ignore"`
	Include         []string `yaml:"include"`
	Exclude         []string `yaml:"exclude"`
	MaxSize         string   `yaml:"maxSize"`
	AllowExt        []string `yaml:"allowExt"`
	DenyExt         []string `yaml:"denyExt"`
}

// LoadRuleFile reads a YAML rule file
func LoadRuleFile(path string) (*RuleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}

	var cfg RuleConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidRule, path, err)
	}
	return &cfg, nil
}

// Merge appends the lists of other and takes its max size when set
func (c *RuleConfig) Merge(other *RuleConfig) {
	if other == nil {
		return
	}
	c.NoDefaultIgnore = c.NoDefaultIgnore || other.NoDefaultIgnore
	c.Ignore = append(c.Ignore, other.Ignore...)
	c.Include = append(c.Include, other.Include...)
	c.Exclude = append(c.Exclude, other.Exclude...)
	c.AllowExt = append(c.AllowExt, other.AllowExt...)
	c.DenyExt = append(c.DenyExt, other.DenyExt...)
	if other.MaxSize != "" {
		c.MaxSize = other.MaxSize
	}
}

// Build turns the config into a rule set for the tree rooted at localRoot.
// The ignore rule is always first; the other rules are added only when configured.
func (c *RuleConfig) Build(localRoot string) (dirsync.RuleSet, error) {
	rules := dirsync.RuleSet{NewIgnoreRule(localRoot, !c.NoDefaultIgnore, c.Ignore...)}

	if len(c.Include) > 0 || len(c.Exclude) > 0 {
		glob, err := NewGlobRule(c.Include, c.Exclude)
		if err != nil {
			return nil, err
		}
		rules = append(rules, glob)
	}

	if strings.TrimSpace(c.MaxSize) != "" {
		maxSize, err := humanize.ParseBytes(c.MaxSize)
		if err != nil {
			return nil, fmt.Errorf("%w: max size %q: %w", ErrInvalidRule, c.MaxSize, err)
		}
		rules = append(rules, SizeRule{Max: int64(maxSize)})
	}

	if len(c.AllowExt) > 0 || len(c.DenyExt) > 0 {
		rules = append(rules, NewExtensionRule(c.AllowExt, c.DenyExt))
	}

	return rules, nil
}
