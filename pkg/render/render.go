// Package render formats the analysis models as Markdown, HTML, PlantUML,
// XMI, plain-text listings and Go source.
//
// Every formatter writes to an io.Writer as it goes, so a section that has
// been computed is already on the writer when a later one fails.
package render

import (
	"fmt"
	"io"
	"strings"
)

// Format selects a formatter for reports that have more than one.
type Format string

// Output formats.
const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatPlantUML Format = "plantuml"
	FormatXMI      Format = "xmi"
)

// ParseFormat accepts a format name in any case. "md" and "uml" are
// accepted as short forms.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "plantuml", "uml", "puml":
		return FormatPlantUML, nil
	case "xmi":
		return FormatXMI, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// printer remembers the first write error so formatters can print line by
// line and check once at the end.
type printer struct {
	w   io.Writer
	err error
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) println(lines ...string) {
	for _, line := range lines {
		if p.err != nil {
			return
		}
		_, p.err = io.WriteString(p.w, line+"\n")
	}
}
