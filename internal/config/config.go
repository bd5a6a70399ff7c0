// Package config holds the user options of shade and loads them from a
// .shade.{yaml,json,toml} file and SHADE_* environment variables.
//
// Options is an immutable value: each analysis run receives its own copy,
// and a reload produces a new value instead of mutating the old one.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/jward/shade/internal/classify"
	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/navigate"
	"github.com/jward/shade/internal/parser"
)

// Mark modes for MarkSelectedNodes.
const (
	MarkNone     = 0
	MarkOthers   = 1
	MarkAll      = 2
	markModesMax = MarkAll
)

// Options are the user-facing settings.
type Options struct {
	// Excluded categories are never rendered.
	Excluded []highlight.Category

	// SelfToAttribute highlights self.name as one attribute node.
	SelfToAttribute bool

	// AlwaysUpdateAll replaces every highlight on each run instead of
	// diffing.
	AlwaysUpdateAll bool

	// TolerateSyntaxErrors lets the parser repair half-typed code.
	TolerateSyntaxErrors bool

	// UpdateDelayFactor is the debounce delay in seconds per buffer line.
	UpdateDelayFactor float64

	// MarkSelectedNodes is MarkNone, MarkOthers or MarkAll (others plus the
	// node under the cursor).
	MarkSelectedNodes int

	// ErrorSign enables the syntax error indicator, shown ErrorSignDelay
	// after the error first appears.
	ErrorSign      bool
	ErrorSignDelay time.Duration

	// FullThreshold is the operation count above which a diff falls back
	// to a full rebuild. Zero uses highlight.DefaultFullThreshold, a
	// negative value disables the fallback.
	FullThreshold int

	// LogLevel is debug, info, warn or error.
	LogLevel string
}

// Default returns the built-in options.
func Default() Options {
	return Options{
		Excluded:             []highlight.Category{highlight.Local},
		SelfToAttribute:      true,
		TolerateSyntaxErrors: true,
		MarkSelectedNodes:    MarkOthers,
		ErrorSign:            true,
		ErrorSignDelay:       1500 * time.Millisecond,
		FullThreshold:        highlight.DefaultFullThreshold,
		LogLevel:             "warn",
	}
}

// file is the on-disk shape. Keys follow the option names editors already
// use for semantic Python highlighting.
type file struct {
	ExcludedHLGroups          []string `mapstructure:"excluded_hl_groups"`
	SelfToAttribute           bool     `mapstructure:"self_to_attribute"`
	AlwaysUpdateAllHighlights bool     `mapstructure:"always_update_all_highlights"`
	TolerateSyntaxErrors      bool     `mapstructure:"tolerate_syntax_errors"`
	UpdateDelayFactor         float64  `mapstructure:"update_delay_factor"`
	MarkSelectedNodes         int      `mapstructure:"mark_selected_nodes"`
	ErrorSign                 bool     `mapstructure:"error_sign"`
	ErrorSignDelay            float64  `mapstructure:"error_sign_delay"`
	FullThreshold             int      `mapstructure:"full_threshold"`
	LogLevel                  string   `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	d := Default()
	excluded := make([]string, len(d.Excluded))
	for i, c := range d.Excluded {
		excluded[i] = c.String()
	}
	v.SetDefault("excluded_hl_groups", excluded)
	v.SetDefault("self_to_attribute", d.SelfToAttribute)
	v.SetDefault("always_update_all_highlights", d.AlwaysUpdateAll)
	v.SetDefault("tolerate_syntax_errors", d.TolerateSyntaxErrors)
	v.SetDefault("update_delay_factor", d.UpdateDelayFactor)
	v.SetDefault("mark_selected_nodes", d.MarkSelectedNodes)
	v.SetDefault("error_sign", d.ErrorSign)
	v.SetDefault("error_sign_delay", d.ErrorSignDelay.Seconds())
	v.SetDefault("full_threshold", d.FullThreshold)
	v.SetDefault("log_level", d.LogLevel)
}

// Load reads options from path when it is set, else from .shade.* in dir.
// A missing file in dir is not an error. Environment variables named
// SHADE_<KEY> override the file.
func Load(dir, path string) (Options, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("shade")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".shade")
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Options{}, fmt.Errorf("config: read %s: %w", describe(dir, path), err)
		}
	}

	var f file
	if err := v.Unmarshal(&f); err != nil {
		return Options{}, fmt.Errorf("config: decode: %w", err)
	}
	opts, err := f.options()
	if err != nil {
		return Options{}, err
	}
	return opts, opts.Validate()
}

func describe(dir, path string) string {
	if path != "" {
		return path
	}
	return filepath.Join(dir, ".shade.*")
}

func (f file) options() (Options, error) {
	excluded := make([]highlight.Category, 0, len(f.ExcludedHLGroups))
	for _, name := range f.ExcludedHLGroups {
		c, err := highlight.ParseCategory(name)
		if err != nil {
			return Options{}, &ConfigError{Field: "excluded_hl_groups", Message: err.Error()}
		}
		excluded = append(excluded, c)
	}
	return Options{
		Excluded:             excluded,
		SelfToAttribute:      f.SelfToAttribute,
		AlwaysUpdateAll:      f.AlwaysUpdateAllHighlights,
		TolerateSyntaxErrors: f.TolerateSyntaxErrors,
		UpdateDelayFactor:    f.UpdateDelayFactor,
		MarkSelectedNodes:    f.MarkSelectedNodes,
		ErrorSign:            f.ErrorSign,
		ErrorSignDelay:       time.Duration(f.ErrorSignDelay * float64(time.Second)),
		FullThreshold:        f.FullThreshold,
		LogLevel:             f.LogLevel,
	}, nil
}

// Validate checks value ranges.
func (o Options) Validate() error {
	switch {
	case o.UpdateDelayFactor < 0:
		return &ConfigError{Field: "update_delay_factor", Message: "must not be negative"}
	case o.MarkSelectedNodes < MarkNone || o.MarkSelectedNodes > markModesMax:
		return &ConfigError{Field: "mark_selected_nodes", Message: fmt.Sprintf("must be 0, 1 or 2, got %d", o.MarkSelectedNodes)}
	case o.ErrorSignDelay < 0:
		return &ConfigError{Field: "error_sign_delay", Message: "must not be negative"}
	}
	return nil
}

// ConfigError reports an invalid option value.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

// UpdateDelay is the debounce delay for a buffer of the given line count.
func (o Options) UpdateDelay(lines int) time.Duration {
	return time.Duration(o.UpdateDelayFactor * float64(lines) * float64(time.Second))
}

// Parser returns the parser options.
func (o Options) Parser() parser.Options {
	return parser.Options{Tolerant: o.TolerateSyntaxErrors}
}

// Classify returns the classifier options.
func (o Options) Classify() classify.Options {
	return classify.Options{SelfToAttribute: o.SelfToAttribute}
}

// Diff returns the diff options. The viewport is left to the caller.
func (o Options) Diff() highlight.Options {
	return highlight.Options{
		Excluded:      o.Excluded,
		FullThreshold: o.FullThreshold,
		AlwaysFull:    o.AlwaysUpdateAll,
	}
}

// Navigate returns the marker options.
func (o Options) Navigate() navigate.Options {
	return navigate.Options{
		MarkOriginal:    o.MarkSelectedNodes == MarkAll,
		SelfToAttribute: o.SelfToAttribute,
	}
}
