// Package config holds the lookup tables and runtime settings of profiledoc.
package config

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "PROFILEDOC"

// Config represents the complete configuration.
type Config struct {
	// Names maps profile ids to display names.
	Names map[string]string `mapstructure:"names" yaml:"names"`

	// SliceOIDs maps identifier system OIDs to fixed slice labels.
	SliceOIDs []SliceOID `mapstructure:"sliceOids" yaml:"sliceOids"`

	// StandardElements are never shown as diagram attributes.
	StandardElements []string `mapstructure:"standardElements" yaml:"standardElements"`

	LocalDocsURL string        `mapstructure:"localDocsURL" yaml:"localDocsURL"`
	CacheDir     string        `mapstructure:"cacheDir" yaml:"cacheDir"`
	FHIRVersion  string        `mapstructure:"fhirVersion" yaml:"fhirVersion"`
	SpecBaseURL  string        `mapstructure:"specBaseURL" yaml:"specBaseURL"`
	Retries      int           `mapstructure:"retries" yaml:"retries"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	LogLevel     string        `mapstructure:"logLevel" yaml:"logLevel"`
}

// SliceOID maps an OID appearing in an identifier system to a slice label.
type SliceOID struct {
	OID   string `mapstructure:"oid" yaml:"oid"`
	Label string `mapstructure:"label" yaml:"label"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Names:            DefaultNames(),
		SliceOIDs:        DefaultSliceOIDs(),
		StandardElements: DefaultStandardElements(),
		LocalDocsURL:     DefaultLocalDocsURL,
		CacheDir:         DefaultCacheDir,
		FHIRVersion:      DefaultFHIRVersion,
		Retries:          DefaultRetries,
		Timeout:          DefaultTimeout,
		LogLevel:         DefaultLogLevel,
	}
}

// Load reads the configuration file at path (YAML, JSON or TOML) and
// PROFILEDOC_* environment variables over the defaults. An empty path looks
// for profiledoc.{yaml,json,toml} in the working directory and tolerates
// its absence.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("profiledoc")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := New()
	v.SetDefault("localDocsURL", cfg.LocalDocsURL)
	v.SetDefault("cacheDir", cfg.CacheDir)
	v.SetDefault("fhirVersion", cfg.FHIRVersion)
	v.SetDefault("specBaseURL", "")
	v.SetDefault("retries", cfg.Retries)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("logLevel", cfg.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var loaded Config
	if err := v.Unmarshal(&loaded); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.merge(&loaded)

	if cfg.Retries < 1 {
		return nil, fmt.Errorf("retries must be at least 1, got %d", cfg.Retries)
	}
	return cfg, nil
}

// merge merges the loaded config into the current config.
func (c *Config) merge(loaded *Config) {
	// Loaded names override defaults. Viper folds keys to lower case, so a
	// default that only differs in case is replaced.
	for k, v := range loaded.Names {
		for existing := range c.Names {
			if existing != k && strings.EqualFold(existing, k) {
				delete(c.Names, existing)
			}
		}
		c.Names[k] = v
	}

	if len(loaded.SliceOIDs) > 0 {
		c.SliceOIDs = loaded.SliceOIDs
	}
	if len(loaded.StandardElements) > 0 {
		c.StandardElements = loaded.StandardElements
	}
	if loaded.LocalDocsURL != "" {
		c.LocalDocsURL = loaded.LocalDocsURL
	}
	if loaded.CacheDir != "" {
		c.CacheDir = loaded.CacheDir
	}
	if loaded.FHIRVersion != "" {
		c.FHIRVersion = loaded.FHIRVersion
	}
	if loaded.SpecBaseURL != "" {
		c.SpecBaseURL = loaded.SpecBaseURL
	}
	if loaded.Retries != 0 {
		c.Retries = loaded.Retries
	}
	if loaded.Timeout != 0 {
		c.Timeout = loaded.Timeout
	}
	if loaded.LogLevel != "" {
		c.LogLevel = loaded.LogLevel
	}
}

// MapName returns the display name for a profile id. A leading
// "StructureDefinition-" is ignored; unknown ids map to themselves.
func (c *Config) MapName(id string) string {
	id = strings.TrimPrefix(id, "StructureDefinition-")
	if name, ok := c.Names[id]; ok {
		return name
	}
	for k, name := range c.Names {
		if strings.EqualFold(k, id) {
			return name
		}
	}
	return id
}

// SliceLabel returns the label of the first configured OID contained in
// system, checked in OID order.
func (c *Config) SliceLabel(system string) (string, bool) {
	if system == "" {
		return "", false
	}
	oids := append([]SliceOID(nil), c.SliceOIDs...)
	sort.SliceStable(oids, func(i, j int) bool { return oids[i].OID < oids[j].OID })
	for _, o := range oids {
		if o.OID != "" && strings.Contains(system, o.OID) {
			return o.Label, true
		}
	}
	return "", false
}

// IsStandardElement reports whether name is on the attribute exclusion list.
func (c *Config) IsStandardElement(name string) bool {
	for _, s := range c.StandardElements {
		if s == name {
			return true
		}
	}
	return false
}

// LocalDocURL returns the implementation guide page of a local profile.
func (c *Config) LocalDocURL(id string) string {
	return c.LocalDocsURL + id + ".html"
}

// WriteYAML serialises c as YAML.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}
