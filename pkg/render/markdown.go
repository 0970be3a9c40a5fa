package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gofhir/profiledoc/pkg/analysis"
	"github.com/gofhir/profiledoc/pkg/element"
)

const (
	elementHeader    = "| Element | Type | Profile | Base | Slicing | Binding | Attributes |"
	elementSeparator = "|---------|------|---------|------|---------|---------|------------|"
)

// Elements writes the element report: top-level elements, all kept
// elements, removed elements and the attribute code legend.
func Elements(w io.Writer, r *analysis.ElementReport) error {
	p := newPrinter(w)
	p.printf("# %s : %s\n\n", r.Name, r.Base)

	p.println("## Elements", "")
	elementTable(p, r.TopLevel())

	p.println("", "## All Elements", "")
	elementTable(p, r.Kept())

	p.println("", "## Removed Elements", "")
	removed := r.Removed()
	if len(removed) == 0 {
		p.println("No removed elements.")
	} else {
		p.println("| Element | Type |", "|---------|------|")
		for _, row := range removed {
			p.printf("| %s | %s |\n", cell(row.Element), cell(row.Type))
		}
	}

	p.println("", "## Attribute Codes", "")
	p.println("| Code | Description |", "|------|-------------|")
	for _, c := range element.Codes {
		p.printf("| %s | %s |\n", c.Code, c.Description)
	}
	return p.err
}

func elementTable(p *printer, rows []analysis.Row) {
	p.println(elementHeader, elementSeparator)
	for _, row := range rows {
		profile := row.Profile.String()
		if row.Overridden() {
			profile = "**" + profile + "**"
		}
		base := ""
		if row.HasBase {
			base = row.Base.String()
		}
		p.printf("| %s | %s | %s | %s | %s | %s | %s |\n",
			cell(row.Element), cell(row.Type), profile, base,
			cell(row.Slicing), cell(row.Binding), row.Attributes)
	}
}

// cell escapes pipes so a value cannot break the table.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

var markdownSpecials = []string{"*", "_", "`", "[", "]", "(", ")", "#", "+", "-", ".", "!"}

// EscapeMarkdown escapes backslashes, pipes and Markdown punctuation, and
// turns newlines into <br>.
func EscapeMarkdown(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "|", `\|`)
	for _, c := range markdownSpecials {
		s = strings.ReplaceAll(s, c, `\`+c)
	}
	s = strings.ReplaceAll(s, "\n", "<br>")
	return strings.ReplaceAll(s, "\r", "")
}

// TextsMarkdown writes the text comparison report as Markdown tables.
func TextsMarkdown(w io.Writer, r *analysis.TextReport) error {
	p := newPrinter(w)
	p.printf("# %s : %s\n\n", EscapeMarkdown(r.Name), r.Base)

	p.println("## Profile Information", "")
	p.println("| Property | Value |", "|----------|-------|")
	p.printf("| Description | %s |\n", EscapeMarkdown(r.Description))
	p.printf("| Purpose | %s |\n", EscapeMarkdown(r.Purpose))

	p.println("", "## Element Information", "")
	p.println("| Element | Property | Text |", "|---------|----------|------|")
	for _, g := range r.Groups {
		for i, row := range g.Rows {
			if i == 0 {
				p.printf("| %s | %s | %s |\n", g.Element, row.Label(), markdownValue(row))
				continue
			}
			p.printf("| | %s | %s |\n", row.Label(), markdownValue(row))
		}
	}
	return p.err
}

func markdownValue(row analysis.TextRow) string {
	if row.Property == analysis.PropertyBinding {
		return element.TextBinding(row.Binding, EscapeMarkdown)
	}
	v := EscapeMarkdown(row.Value)
	if v != "" && row.Emphasis {
		return "**" + v + "**"
	}
	return v
}

// Changes writes the change report as a Markdown table followed by the
// example instance as indented JSON.
func Changes(w io.Writer, r *analysis.ChangeReport) error {
	p := newPrinter(w)
	p.printf("# %s\n", r.Title)
	p.printf("Base: %s\n\n", r.Base)

	p.println("## Elements")
	p.println("| Element | Type | Cardinality | Changes |", "|---------|------|-------------|---------|")
	for _, c := range r.Changes {
		p.printf("| %s | %s | %s | %s |\n", cell(c.Element), cell(c.Type), c.Cardinality, cell(c.Summary()))
	}
	if p.err != nil {
		return p.err
	}

	example, err := json.MarshalIndent(r.Example, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding example: %w", err)
	}
	p.println("", "## Example", "```json", string(example), "```")
	return p.err
}
