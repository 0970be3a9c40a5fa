// Package loader reads StructureDefinitions from disk or over HTTP and keeps
// fetched base resources in an on-disk cache.
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofhir/fhir/r4"

	"github.com/gofhir/profiledoc"
	"github.com/gofhir/profiledoc/pkg/logger"
	"github.com/gofhir/profiledoc/pkg/registry"
)

const (
	// DefaultTimeout for HTTP requests.
	DefaultTimeout = 30 * time.Second

	// DefaultRetries is the number of GET attempts for a remote document.
	DefaultRetries = 3

	// DefaultCacheDir is where fetched base resources are stored.
	DefaultCacheDir = "base_resources"
)

// Error kinds. Returned errors wrap one of these and can be tested with errors.Is.
var (
	// ErrNotFound means a local input does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidDocument means the input is not valid JSON or not a StructureDefinition.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrFetch means a remote document could not be retrieved.
	ErrFetch = errors.New("fetch failed")
)

// statusError is a non-2xx HTTP response.
type statusError struct {
	url    string
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.url, e.status)
}

// Loader loads StructureDefinitions. Documents are remembered in a registry
// for the lifetime of the Loader; fetched base resources are also written to
// the cache directory and never expire.
type Loader struct {
	httpClient  *http.Client
	retries     int
	cacheDir    string
	specBaseURL string
	version     profiledoc.FHIRVersion
	offline     bool
	registry    *registry.Registry
	log         *logger.Logger
}

// Option configures the Loader.
type Option func(*Loader)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		l.httpClient = client
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(l *Loader) {
		if timeout > 0 {
			l.httpClient.Timeout = timeout
		}
	}
}

// WithRetries sets the number of GET attempts for remote documents.
func WithRetries(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.retries = n
		}
	}
}

// WithCacheDir sets the base resource cache directory.
func WithCacheDir(dir string) Option {
	return func(l *Loader) {
		l.cacheDir = dir
	}
}

// WithSpecBaseURL overrides where core base resources are fetched from.
func WithSpecBaseURL(url string) Option {
	return func(l *Loader) {
		if url != "" {
			l.specBaseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithFHIRVersion selects the specification release for base resources.
func WithFHIRVersion(v profiledoc.FHIRVersion) Option {
	return func(l *Loader) {
		if v.IsValid() {
			l.version = v
			l.specBaseURL = v.SpecBaseURL()
		}
	}
}

// WithOffline disables all network access.
func WithOffline(offline bool) Option {
	return func(l *Loader) {
		l.offline = offline
	}
}

// WithRegistry shares a registry between loaders.
func WithRegistry(r *registry.Registry) Option {
	return func(l *Loader) {
		l.registry = r
	}
}

// WithLogger sets the logger used for warnings.
func WithLogger(log *logger.Logger) Option {
	return func(l *Loader) {
		l.log = log
	}
}

// New creates a new Loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		retries:     DefaultRetries,
		cacheDir:    DefaultCacheDir,
		version:     profiledoc.R4,
		specBaseURL: profiledoc.R4.SpecBaseURL(),
		registry:    registry.New(),
		log:         logger.Default(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Registry returns the registry of documents loaded so far.
func (l *Loader) Registry() *registry.Registry {
	return l.registry
}

// IsRemote reports whether pathOrURL is an http(s) URL.
func IsRemote(pathOrURL string) bool {
	return strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://")
}

// Load reads a StructureDefinition from a local path or an http(s) URL.
func (l *Loader) Load(ctx context.Context, pathOrURL string) (*registry.StructureDefinition, error) {
	if sd := l.registry.GetByURL(pathOrURL); sd != nil {
		return sd, nil
	}

	var (
		data []byte
		err  error
	)
	if IsRemote(pathOrURL) {
		if l.offline {
			return nil, fmt.Errorf("%w: %s: offline", ErrFetch, pathOrURL)
		}
		data, err = l.fetch(ctx, pathOrURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
	} else {
		data, err = l.readFile(pathOrURL)
		if err != nil {
			return nil, err
		}
	}

	sd, err := l.parse(pathOrURL, data)
	if err != nil {
		return nil, err
	}
	return l.registry.Add(pathOrURL, sd), nil
}

// ReadText reads a text input such as an FSH file.
func (l *Loader) ReadText(path string) (string, error) {
	data, err := l.readFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (l *Loader) readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// LoadBase returns the base StructureDefinition a profile derives from. It
// looks in the registry, then in <cacheDir>/<Type>.json, then fetches
// <spec>/StructureDefinition-<Type>.json and <spec>/<type>.profile.json.
// A fetched document is written to the cache directory. A cache file that
// does not parse is treated as missing and overwritten by the fetch.
func (l *Loader) LoadBase(ctx context.Context, baseURL string) (*registry.StructureDefinition, error) {
	typeName := registry.LastSegment(baseURL)
	if typeName == "" {
		return nil, fmt.Errorf("%w: empty base definition", ErrFetch)
	}

	if sd := l.registry.GetByURL(baseURL); sd != nil {
		return sd, nil
	}

	cachePath := l.CachePath(typeName)
	if data, err := os.ReadFile(cachePath); err == nil {
		sd, err := l.parse(cachePath, data)
		if err == nil {
			l.log.Debug("base %s read from %s", typeName, cachePath)
			return l.registry.Add(baseURL, sd), nil
		}
		l.log.Warn("ignoring unreadable cache file %s: %v", cachePath, err)
	}

	if l.offline {
		return nil, fmt.Errorf("%w: base %s not cached and offline", ErrFetch, typeName)
	}

	var lastErr error
	for _, url := range l.BaseURLs(typeName) {
		data, err := l.fetch(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		sd, err := l.parse(url, data)
		if err != nil {
			return nil, err
		}
		if err := l.writeCache(cachePath, data); err != nil {
			l.log.Warn("could not cache %s: %v", typeName, err)
		}
		l.log.Info("fetched base %s from %s", typeName, url)
		return l.registry.Add(baseURL, sd), nil
	}
	return nil, fmt.Errorf("%w: base %s: %w", ErrFetch, typeName, lastErr)
}

// BaseURLs returns the URLs tried for a core type, in order.
func (l *Loader) BaseURLs(typeName string) []string {
	return []string{
		fmt.Sprintf("%s/StructureDefinition-%s.json", l.specBaseURL, typeName),
		fmt.Sprintf("%s/%s.profile.json", l.specBaseURL, strings.ToLower(typeName)),
	}
}

// CachePath returns the cache file of a type.
func (l *Loader) CachePath(typeName string) string {
	return filepath.Join(l.cacheDir, typeName+".json")
}

func (l *Loader) writeCache(path string, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("failed to indent: %w", err)
	}
	buf.WriteByte('\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// fetch GETs url, trying up to l.retries times with no delay between
// attempts. A 404 is final.
func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= l.retries; attempt++ {
		data, err := l.get(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) && se.status == http.StatusNotFound {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < l.retries {
			l.log.Warn("attempt %d failed: %v", attempt, err)
		}
	}
	return nil, lastErr
}

func (l *Loader) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/fhir+json, application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{url: url, status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return data, nil
}

// parse decodes data and checks it is a StructureDefinition.
func (l *Loader) parse(source string, data []byte) (*registry.StructureDefinition, error) {
	sd, err := registry.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDocument, source, err)
	}
	if sd.ResourceType != "StructureDefinition" {
		return nil, fmt.Errorf("%w: %s: resourceType is %q", ErrInvalidDocument, source, sd.ResourceType)
	}
	l.checkTyped(source, data)
	return sd, nil
}

// checkTyped decodes the document through the R4 model and reports a
// fhirVersion that does not match the configured release. Documents the
// typed model rejects are still usable by the lightweight model.
func (l *Loader) checkTyped(source string, data []byte) {
	var typed r4.StructureDefinition
	if err := json.Unmarshal(data, &typed); err != nil {
		l.log.Debug("%s does not decode as R4 StructureDefinition: %v", source, err)
		return
	}
	if typed.FhirVersion == nil || l.version.Number() == "" {
		return
	}
	if got := string(*typed.FhirVersion); got != l.version.Number() {
		l.log.Warn("%s declares fhirVersion %s, expected %s", source, got, l.version.Number())
	}
}
