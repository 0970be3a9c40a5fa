package snapshot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/profiledoc/pkg/registry"
)

func mustParse(t *testing.T, doc string) *registry.StructureDefinition {
	t.Helper()
	sd, err := registry.Parse([]byte(doc))
	require.NoError(t, err)
	return sd
}

const base = `{
  "resourceType": "StructureDefinition", "type": "Patient",
  "snapshot": {"element": [
    {"path": "Patient", "min": 0, "max": "*"},
    {"path": "Patient.identifier", "min": 0, "max": "*", "short": "An identifier", "type": [{"code": "Identifier"}]},
    {"path": "Patient.link", "min": 0, "max": "*", "type": [{"code": "BackboneElement"}]}
  ]}
}`

func TestEffective_PrefersSnapshot(t *testing.T) {
	sd := mustParse(t, base)
	elements, src, err := Effective(sd, nil)
	require.NoError(t, err)
	assert.Equal(t, FromSnapshot, src)
	assert.Len(t, elements, 3)
}

func TestEffective_MergesDifferential(t *testing.T) {
	profile := mustParse(t, `{
	  "resourceType": "StructureDefinition", "type": "Patient",
	  "differential": {"element": [
	    {"path": "Patient.identifier", "min": 1, "max": "1", "type": [{"code": "Identifier", "profile": ["http://x/id"]}]},
	    {"path": "Patient.extension", "sliceName": "local", "min": 0, "max": "1"}
	  ]}
	}`)

	elements, src, err := Effective(profile, mustParse(t, base))
	require.NoError(t, err)
	assert.Equal(t, FromMerge, src)
	require.Len(t, elements, 2)

	id := elements[0]
	assert.Equal(t, "1..1", id.Cardinality().String())
	assert.Equal(t, "An identifier", id.Short, "inherited from base")
	require.Len(t, id.Type, 1)
	assert.Equal(t, registry.StringList{"http://x/id"}, id.Type[0].Profile, "type replaced wholesale")

	assert.Equal(t, "local", elements[1].SliceName, "unknown paths pass through")
}

func TestEffective_DifferentialAlone(t *testing.T) {
	profile := mustParse(t, `{"resourceType":"StructureDefinition","type":"Patient",
	  "differential":{"element":[{"path":"Patient.identifier","min":1}]}}`)
	elements, src, err := Effective(profile, nil)
	require.NoError(t, err)
	assert.Equal(t, FromDifferential, src)
	assert.Len(t, elements, 1)
}

func TestMergeRaw(t *testing.T) {
	tests := []struct {
		name       string
		base, diff string
		want       map[string]any
	}{
		{
			name: "disjoint keys give the union",
			base: `{"path":"A.b","short":"s"}`,
			diff: `{"path":"A.b","min":1}`,
			want: map[string]any{"path": "A.b", "short": "s", "min": float64(1)},
		},
		{
			name: "overlapping keys take the differential",
			base: `{"path":"A.b","min":0,"type":[{"code":"string"},{"code":"code"}]}`,
			diff: `{"path":"A.b","min":1,"type":[{"code":"code"}]}`,
			want: map[string]any{
				"path": "A.b",
				"min":  float64(1),
				"type": []any{map[string]any{"code": "code"}},
			},
		},
		{
			name: "nested objects are not merged",
			base: `{"path":"A.b","binding":{"strength":"required","valueSet":"http://a"}}`,
			diff: `{"path":"A.b","binding":{"strength":"extensible"}}`,
			want: map[string]any{"path": "A.b", "binding": map[string]any{"strength": "extensible"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := MergeRaw(json.RawMessage(tt.base), json.RawMessage(tt.diff))
			require.NoError(t, err)
			var got map[string]any
			require.NoError(t, json.Unmarshal(out, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHiddenBy(t *testing.T) {
	removed := []string{"Patient.contact", "Patient.identifier:old"}

	tests := []struct {
		path string
		want bool
	}{
		{"Patient.contact", false},
		{"Patient.contact.name", true},
		{"Patient.contact:slice", true},
		{"Patient.contactPoint", false},
		{"Patient.identifier:old.system", true},
		{"Patient.identifier", false},
		{"Patient.identifier:older", false},
	}

	for _, tt := range tests {
		if got := HiddenBy(tt.path, removed); got != tt.want {
			t.Errorf("HiddenBy(%q) = %v; want %v", tt.path, got, tt.want)
		}
	}
}

func TestRemovedAndReportable(t *testing.T) {
	sd := mustParse(t, `{"resourceType":"StructureDefinition","type":"Patient","snapshot":{"element":[
	  {"path":"Patient"},
	  {"path":"Patient.photo","min":0,"max":"0"},
	  {"path":"Patient.name","min":0,"max":"*"}
	]}}`)

	elements := sd.SnapshotElements()
	assert.Equal(t, []string{"Patient.photo"}, Removed(elements))

	reportable := Reportable(sd, elements)
	require.Len(t, reportable, 2)
	assert.Equal(t, "Patient.photo", reportable[0].Path)

	idx := ByPath(elements)
	assert.Equal(t, "0..0", idx["Patient.photo"].Cardinality().String())
}
