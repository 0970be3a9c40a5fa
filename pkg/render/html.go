package render

import (
	"html"
	"io"
	"strconv"

	"github.com/gofhir/profiledoc/pkg/analysis"
	"github.com/gofhir/profiledoc/pkg/element"
)

// TextsHTML writes the text comparison report as an HTML table with one
// row group per element. The first cell spans the group and shows the
// element name and type.
func TextsHTML(w io.Writer, r *analysis.TextReport) error {
	p := newPrinter(w)
	p.println("<html>")
	p.printf("<h2>%s : %s</h2>\n", html.EscapeString(r.Name), html.EscapeString(r.Base))
	p.println(
		"<table border='1' style='border-collapse: collapse;'>",
		"  <thead>",
		"    <tr><th>Element</th><th>Type</th><th>Text</th></tr>",
		"  </thead>",
		"  <tbody>",
	)
	for _, g := range r.Groups {
		for i, row := range g.Rows {
			if i == 0 {
				p.printf("    <tr><td rowspan=\"%s\">%s<br>%s</td><td>%s</td><td>%s</td></tr>\n",
					strconv.Itoa(len(g.Rows)), html.EscapeString(g.Element), html.EscapeString(g.Type),
					row.Label(), htmlValue(row))
				continue
			}
			p.printf("    <tr><td>%s</td><td>%s</td></tr>\n", row.Label(), htmlValue(row))
		}
	}
	p.println("  </tbody>", "</table>", "</html>")
	return p.err
}

func htmlValue(row analysis.TextRow) string {
	if row.Property == analysis.PropertyBinding {
		return html.EscapeString(element.Binding(row.Binding))
	}
	v := html.EscapeString(row.Value)
	if v != "" && row.Emphasis {
		return "<strong>" + v + "</strong>"
	}
	return v
}
