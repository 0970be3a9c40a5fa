// Package query selects elements for listings by path prefix and an
// optional FHIRPath expression evaluated against each element's JSON.
package query

import (
	"fmt"
	"strings"

	"github.com/gofhir/fhirpath"
	"github.com/gofhir/fhirpath/funcs"
	"github.com/gofhir/fhirpath/types"

	"github.com/gofhir/profiledoc/pkg/cache"
	"github.com/gofhir/profiledoc/pkg/logger"
	"github.com/gofhir/profiledoc/pkg/registry"
)

func init() {
	// trace() would otherwise write to stdout, which carries the reports.
	funcs.SetTraceLogger(funcs.NullTraceLogger{})
}

// Filter keeps elements whose path starts with Prefix and, when Expression
// is set, for which the expression is truthy.
type Filter struct {
	Prefix     string
	Expression string

	compiled *cache.Cache[string, *fhirpath.Expression]
}

// Option configures a Filter.
type Option func(*Filter)

// WithCache shares a compiled-expression cache between filters.
func WithCache(c *cache.Cache[string, *fhirpath.Expression]) Option {
	return func(f *Filter) {
		f.compiled = c
	}
}

// New creates a filter. The expression is compiled up front so a typo fails
// before any file is read.
func New(prefix, expression string, opts ...Option) (*Filter, error) {
	f := &Filter{
		Prefix:     prefix,
		Expression: strings.TrimSpace(expression),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.compiled == nil {
		f.compiled = cache.New[string, *fhirpath.Expression](cache.DefaultCapacity)
	}
	if f.Expression != "" {
		if _, err := f.compile(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Filter) compile() (*fhirpath.Expression, error) {
	expr, err := f.compiled.GetOrLoad(f.Expression, func() (*fhirpath.Expression, error) {
		return fhirpath.Compile(f.Expression)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile FHIRPath expression '%s': %w", f.Expression, err)
	}
	return expr, nil
}

// IsZero reports whether the filter keeps everything.
func (f *Filter) IsZero() bool {
	return f == nil || (f.Prefix == "" && f.Expression == "")
}

// Match reports whether ed passes the filter.
func (f *Filter) Match(ed *registry.ElementDefinition) (bool, error) {
	if f.IsZero() {
		return true, nil
	}
	if f.Prefix != "" && !strings.HasPrefix(ed.Path, f.Prefix) {
		return false, nil
	}
	if f.Expression == "" {
		return true, nil
	}

	expr, err := f.compile()
	if err != nil {
		return false, err
	}
	result, err := expr.Evaluate(ed.Raw())
	if err != nil {
		return false, fmt.Errorf("failed to evaluate FHIRPath expression '%s' on %s: %w", f.Expression, ed.Path, err)
	}
	return truthy(result), nil
}

// Apply returns the elements that pass the filter, in order. Elements the
// expression cannot be evaluated against are logged and dropped.
func (f *Filter) Apply(elements []registry.ElementDefinition) []registry.ElementDefinition {
	if f.IsZero() {
		return elements
	}
	out := make([]registry.ElementDefinition, 0, len(elements))
	for i := range elements {
		ok, err := f.Match(&elements[i])
		if err != nil {
			logger.Warn("%v", err)
			continue
		}
		if ok {
			out = append(out, elements[i])
		}
	}
	if f.Expression != "" {
		s := f.compiled.Stats()
		logger.Debug("fhirpath cache: %d expressions, hit rate %.2f", s.Size, s.HitRate())
	}
	return out
}

// truthy applies FHIRPath boolean conversion: empty is false, a single
// boolean is its value, anything else non-empty is true.
func truthy(result types.Collection) bool {
	if len(result) == 0 {
		return false
	}
	if len(result) == 1 {
		if b, ok := result[0].(types.Boolean); ok {
			return b.Bool()
		}
	}
	return true
}
