package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/profiledoc/pkg/analysis"
	"github.com/gofhir/profiledoc/pkg/cardinality"
	"github.com/gofhir/profiledoc/pkg/registry"
)

func card(s string) cardinality.Cardinality {
	c, err := cardinality.Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

func TestElements(t *testing.T) {
	report := &analysis.ElementReport{
		Name: "LmdiPatient",
		Base: "Patient",
		Rows: []analysis.Row{
			{Path: "Patient.gender", Element: "gender", Type: "code", Profile: card("1..1"), Base: card("0..1"), HasBase: true,
				Binding: "(http://hl7.org/fhir/ValueSet/administrative-gender) [required]"},
			{Path: "Patient.identifier", Element: "identifier", Type: "Identifier", Profile: card("1..*"), Base: card("0..*"), HasBase: true, Attributes: "MS"},
			{Path: "Patient.name.given", Element: "name.given", Type: "string", Profile: card("0..*"), Base: card("0..*"), HasBase: true},
			{Path: "Patient.generalPractitioner", Element: "generalPractitioner", Type: "Reference(Helsepersonell | Organisasjon)",
				Profile: card("0..1")},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Elements(&buf, report))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# LmdiPatient : Patient\n\n## Elements\n\n| Element | Type |"), out)
	assert.Contains(t, out, "| gender | code | **1..1** | 0..1 |  | (http://hl7.org/fhir/ValueSet/administrative-gender) [required] |  |\n")
	assert.Contains(t, out, "| name.given | string | 0..* | 0..* |  |  |  |\n")
	assert.Contains(t, out, `| generalPractitioner | Reference(Helsepersonell \| Organisasjon) | 0..1 |  |`)
	assert.Contains(t, out, "## Removed Elements\n\nNo removed elements.\n")
	assert.Contains(t, out, "| ?! | Is Modifier |\n")

	top := out[:strings.Index(out, "## All Elements")]
	assert.NotContains(t, top, "name.given")
}

func TestElements_Removed(t *testing.T) {
	report := &analysis.ElementReport{
		Name: "NoContact", Base: "Patient",
		Rows: []analysis.Row{
			{Element: "contact", Type: "BackboneElement", Profile: card("0..0"), Base: card("0..*"), HasBase: true},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, Elements(&buf, report))
	assert.Contains(t, buf.String(), "## Removed Elements\n\n| Element | Type |\n|---------|------|\n| contact | BackboneElement |\n")
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain text", "plain text"},
		{"a | b", `a \| b`},
		{"male | female", `male \| female`},
		{"see [this](x).", `see \[this\]\(x\)\.`},
		{"line one\r\nline two", "line one<br>line two"},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EscapeMarkdown(tt.in), tt.in)
	}
}

func TestTextsMarkdown(t *testing.T) {
	report := &analysis.TextReport{
		Name: "LmdiPatient", Base: "Patient", Description: "Pasient i LMDI.",
		Groups: []analysis.TextGroup{
			{Element: "name", Type: "HumanName", Rows: []analysis.TextRow{
				{Property: "short", Value: "Navn", Base: "A name", Emphasis: true},
				{Property: "definition", Value: "A name associated with the patient", Base: "A name associated with the patient"},
				{Property: "comment"},
			}},
			{Element: "gender", Type: "code", Rows: []analysis.TextRow{
				{Property: "short", Value: "male | female"},
				{Property: analysis.PropertyBinding, Binding: &registry.Binding{
					Strength: "required",
					ValueSet: registry.ValueSetRef{URL: "http://hl7.org/fhir/ValueSet/administrative-gender"},
				}},
			}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, TextsMarkdown(&buf, report))
	out := buf.String()

	assert.Contains(t, out, "| Description | Pasient i LMDI\\. |\n")
	assert.Contains(t, out, "| name | Short | **Navn** |\n| | Definition | A name associated with the patient |\n| | Comment |  |\n")
	assert.Contains(t, out, `| gender | Short | male \| female |`)
	assert.Contains(t, out, "| | Binding | Required binding: [http://hl7\\.org/fhir/ValueSet/administrative\\-gender](http://hl7\\.org/fhir/ValueSet/administrative\\-gender) |")
}

func TestChanges(t *testing.T) {
	example := analysis.NewObject()
	example.Set("resourceType", "Patient")
	example.Set("active", true)

	report := &analysis.ChangeReport{
		Title: "LMDI Patient",
		Base:  "Patient",
		Changes: []analysis.Change{
			{Element: "identifier", Type: "Identifier", Cardinality: card("1..1"), Changes: []string{"min: 0→1", "MS"}},
			{Element: "active", Type: "boolean", Cardinality: card("0..1")},
		},
		Example: example,
	}

	var buf bytes.Buffer
	require.NoError(t, Changes(&buf, report))
	want := "# LMDI Patient\n" +
		"Base: Patient\n\n" +
		"## Elements\n" +
		"| Element | Type | Cardinality | Changes |\n" +
		"|---------|------|-------------|---------|\n" +
		"| identifier | Identifier | 1..1 | min: 0→1, MS |\n" +
		"| active | boolean | 0..1 | - |\n" +
		"\n## Example\n" +
		"```json\n" +
		"{\n  \"resourceType\": \"Patient\",\n  \"active\": true\n}\n" +
		"```\n"
	assert.Equal(t, want, buf.String())
}
