// Package config loads the build configuration: the path configuration every
// task reads, plus settings for the external tools and the dev server.
//
// The YAML file is optional. Values it sets override the defaults, which
// reproduce the conventional src/ -> dist/ layout.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/sitebuild/sitebuild/pkg/constants"
	"github.com/sitebuild/sitebuild/pkg/envutil"
	"github.com/sitebuild/sitebuild/pkg/logger"
)

var configLog = logger.New("config:config")

// Paths maps each logical role to a glob pattern or directory.
type Paths struct {
	Dist string `json:"dist,omitempty" yaml:"dist" jsonschema:"distribution root, deleted by clean"`
	Src  string `json:"src,omitempty" yaml:"src" jsonschema:"source root, served by the dev server"`

	CSSIn  string `json:"css_in,omitempty" yaml:"css_in" jsonschema:"glob of plain stylesheets to concatenate"`
	JSIn   string `json:"js_in,omitempty" yaml:"js_in" jsonschema:"glob of scripts to concatenate"`
	ImgIn  string `json:"img_in,omitempty" yaml:"img_in" jsonschema:"glob of images to optimize"`
	HTMLIn string `json:"html_in,omitempty" yaml:"html_in" jsonschema:"glob of markup files"`
	SCSSIn string `json:"scss_in,omitempty" yaml:"scss_in" jsonschema:"glob of Sass sources"`

	CSSOut  string `json:"css_out,omitempty" yaml:"css_out" jsonschema:"output directory for the stylesheet bundle"`
	JSOut   string `json:"js_out,omitempty" yaml:"js_out" jsonschema:"output directory for the script bundle"`
	ImgOut  string `json:"img_out,omitempty" yaml:"img_out" jsonschema:"output directory for images"`
	HTMLOut string `json:"html_out,omitempty" yaml:"html_out" jsonschema:"output directory for markup"`
	SCSSOut string `json:"scss_out,omitempty" yaml:"scss_out" jsonschema:"output directory for compiled Sass"`

	CSSOutName string `json:"css_out_name,omitempty" yaml:"css_out_name" jsonschema:"file name of the stylesheet bundle"`
	JSOutName  string `json:"js_out_name,omitempty" yaml:"js_out_name" jsonschema:"file name of the script bundle"`

	CSSReplaceOut string `json:"css_replace_out,omitempty" yaml:"css_replace_out" jsonschema:"stylesheet href written into build:css blocks"`
	JSReplaceOut  string `json:"js_replace_out,omitempty" yaml:"js_replace_out" jsonschema:"script src written into build:js blocks"`
}

// Sass configures the external style compiler.
type Sass struct {
	Command    []string `json:"command,omitempty" yaml:"command" jsonschema:"compiler command and leading arguments"`
	SourceMaps *bool    `json:"source_maps,omitempty" yaml:"source_maps" jsonschema:"embed source maps in compiled CSS"`
	LoadPaths  []string `json:"load_paths,omitempty" yaml:"load_paths" jsonschema:"extra directories searched by @use and @import"`
}

// Prefix configures the external vendor-prefix step.
type Prefix struct {
	Enabled  *bool    `json:"enabled,omitempty" yaml:"enabled" jsonschema:"run the vendor-prefix command"`
	Browsers string   `json:"browsers,omitempty" yaml:"browsers" jsonschema:"browserslist query"`
	Command  []string `json:"command,omitempty" yaml:"command" jsonschema:"prefixer command reading CSS on stdin and writing it to stdout"`
}

// HTML configures markup minification.
type HTML struct {
	CollapseWhitespace *bool `json:"collapse_whitespace,omitempty" yaml:"collapse_whitespace" jsonschema:"collapse whitespace between elements"`
	KeepComments       bool  `json:"keep_comments,omitempty" yaml:"keep_comments" jsonschema:"preserve HTML comments"`
}

// Serve configures the live-reload dev server.
type Serve struct {
	Addr    string `json:"addr,omitempty" yaml:"addr" jsonschema:"listen address of the dev server"`
	Metrics *bool  `json:"metrics,omitempty" yaml:"metrics" jsonschema:"expose task metrics on the dev server"`
}

// Watch configures watch mode.
type Watch struct {
	DebounceMS int `json:"debounce_ms,omitempty" yaml:"debounce_ms" jsonschema:"milliseconds to wait for a burst of changes to settle"`
}

// Config is the complete build configuration.
type Config struct {
	Paths  Paths  `json:"paths,omitempty" yaml:"paths"`
	Sass   Sass   `json:"sass,omitempty" yaml:"sass"`
	Prefix Prefix `json:"prefix,omitempty" yaml:"prefix"`
	HTML   HTML   `json:"html,omitempty" yaml:"html"`
	Serve  Serve  `json:"serve,omitempty" yaml:"serve"`
	Watch  Watch  `json:"watch,omitempty" yaml:"watch"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Paths: Paths{
			Dist:          "dist/",
			Src:           "src/",
			CSSIn:         "src/css/**/*.css",
			JSIn:          "src/js/**/*.js",
			ImgIn:         "src/img/**/*.{jpg,jpeg,png,gif,svg}",
			HTMLIn:        "src/*.html",
			SCSSIn:        "src/scss/**/*.scss",
			CSSOut:        "dist/css/",
			JSOut:         "dist/js/",
			ImgOut:        "dist/img/",
			HTMLOut:       "dist/",
			SCSSOut:       "src/css/",
			CSSOutName:    "style.css",
			JSOutName:     "script.js",
			CSSReplaceOut: "css/style.css",
			JSReplaceOut:  "js/script.js",
		},
		Sass: Sass{
			Command:    []string{"sass"},
			SourceMaps: ptr(true),
		},
		Prefix: Prefix{
			Enabled:  ptr(true),
			Browsers: constants.DefaultBrowsers,
			Command:  []string{"npx", "--no-install", "postcss", "--use", "autoprefixer"},
		},
		HTML: HTML{
			CollapseWhitespace: ptr(true),
		},
		Serve: Serve{
			Addr:    constants.DefaultServeAddr,
			Metrics: ptr(true),
		},
		Watch: Watch{
			DebounceMS: int(constants.DefaultDebounce / time.Millisecond),
		},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// optional is set; the defaults are returned instead. Environment overrides
// are applied last.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		configLog.Printf("Loading configuration from %s", path)
		if err := Parse(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid configuration in %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && optional:
		configLog.Printf("No configuration at %s, using defaults", path)
	default:
		return Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse validates data against the schema and decodes it over cfg.
func Parse(data []byte, cfg *Config) error {
	if err := ValidateYAML(data); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode YAML: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Watch.DebounceMS = envutil.GetIntFromEnv(constants.EnvDebounceMS, c.Watch.DebounceMS, 10, 10000, configLog)
	c.Serve.Addr = envutil.GetStringFromEnv(constants.EnvServeAddr, c.Serve.Addr)
}

// Validate checks the semantic constraints the schema cannot express.
func (c Config) Validate() error {
	required := map[string]string{
		"paths.dist":         c.Paths.Dist,
		"paths.css_out_name": c.Paths.CSSOutName,
		"paths.js_out_name":  c.Paths.JSOutName,
	}
	for key, value := range required {
		if value == "" {
			return fmt.Errorf("configuration key %s must not be empty", key)
		}
	}
	if len(c.Sass.Command) == 0 {
		return errors.New("configuration key sass.command must name a command")
	}
	if c.PrefixEnabled() && len(c.Prefix.Command) == 0 {
		return errors.New("configuration key prefix.command must name a command when prefix.enabled is true")
	}
	if c.Watch.DebounceMS <= 0 {
		return errors.New("configuration key watch.debounce_ms must be positive")
	}
	return nil
}

// Debounce returns the watch debounce window.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// SourceMaps reports whether compiled Sass embeds source maps.
func (c Config) SourceMaps() bool { return deref(c.Sass.SourceMaps, true) }

// PrefixEnabled reports whether the vendor-prefix command runs.
func (c Config) PrefixEnabled() bool { return deref(c.Prefix.Enabled, true) }

// CollapseWhitespace reports whether markup whitespace is collapsed.
func (c Config) CollapseWhitespace() bool { return deref(c.HTML.CollapseWhitespace, true) }

// MetricsEnabled reports whether the dev server exposes task metrics.
func (c Config) MetricsEnabled() bool { return deref(c.Serve.Metrics, true) }

func ptr[T any](v T) *T { return &v }

func deref(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}
