// Package main implements the profiledoc CLI tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gofhir/profiledoc"
	"github.com/gofhir/profiledoc/pkg/batch"
	"github.com/gofhir/profiledoc/pkg/config"
	"github.com/gofhir/profiledoc/pkg/loader"
	"github.com/gofhir/profiledoc/pkg/logger"
)

// defaultPath is read when no path argument is given.
const defaultPath = "profiles"

// errFailed is returned when at least one input could not be processed.
var errFailed = errors.New("one or more inputs failed")

// app holds the state shared by all commands of one invocation.
type app struct {
	out io.Writer

	configPath  string
	cacheDir    string
	offline     bool
	logLevel    string
	fhirVersion string
	timeout     time.Duration
	retries     int

	cfg     *config.Config
	version profiledoc.FHIRVersion
	loader  *loader.Loader
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	rootCmd := &cobra.Command{
		Use:           "profiledoc",
		Short:         "Documentation reports for FHIR profiles",
		Version:       profiledoc.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	rootCmd.SetOut(out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "configuration file (default ./profiledoc.yaml if present)")
	flags.StringVar(&a.cacheDir, "cache-dir", config.DefaultCacheDir, "directory for downloaded base resources")
	flags.BoolVar(&a.offline, "offline", false, "never fetch base resources over the network")
	flags.StringVar(&a.logLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn, error, none")
	flags.StringVar(&a.fhirVersion, "fhir-version", config.DefaultFHIRVersion, "FHIR version of the base resources (R4, R4B, R5)")
	flags.DurationVar(&a.timeout, "timeout", config.DefaultTimeout, "HTTP timeout")
	flags.IntVar(&a.retries, "retries", config.DefaultRetries, "attempts per remote document")

	rootCmd.AddCommand(a.elementsCmd())
	rootCmd.AddCommand(a.textsCmd())
	rootCmd.AddCommand(a.diagramCmd())
	rootCmd.AddCommand(a.listCmd())
	rootCmd.AddCommand(a.changesCmd())
	rootCmd.AddCommand(a.gostructCmd())
	rootCmd.AddCommand(a.configCmd())

	return rootCmd
}

// setup loads the configuration, applies flags given on the command line
// over it and builds the loader.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("cache-dir") {
		cfg.CacheDir = a.cacheDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("fhir-version") {
		cfg.FHIRVersion = a.fhirVersion
	}
	if flags.Changed("timeout") {
		cfg.Timeout = a.timeout
	}
	if flags.Changed("retries") {
		if a.retries < 1 {
			return fmt.Errorf("--retries must be at least 1, got %d", a.retries)
		}
		cfg.Retries = a.retries
	}

	level, ok := logger.ParseLevel(cfg.LogLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	logger.SetLevel(level)

	version, ok := profiledoc.ParseFHIRVersion(cfg.FHIRVersion)
	if !ok {
		return fmt.Errorf("unsupported FHIR version %q", cfg.FHIRVersion)
	}

	a.cfg = cfg
	a.version = version
	a.loader = loader.New(
		loader.WithFHIRVersion(version),
		loader.WithSpecBaseURL(cfg.SpecBaseURL),
		loader.WithCacheDir(cfg.CacheDir),
		loader.WithTimeout(cfg.Timeout),
		loader.WithRetries(cfg.Retries),
		loader.WithOffline(a.offline),
	)
	logger.Debug("fhir %s, cache %s, offline %t", version, cfg.CacheDir, a.offline)
	return nil
}

// pathArg returns the first argument or the default input directory.
func pathArg(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0]
	}
	return defaultPath
}

// finish turns a batch summary into the command result.
func finish(s *batch.Summary) error {
	if s.Total == 0 {
		logger.Warn("no input files found")
	}
	if s.HasFailures() {
		failed := s.Failed + s.Total - len(s.Results)
		return fmt.Errorf("%w: %d of %d", errFailed, failed, s.Total)
	}
	return nil
}
