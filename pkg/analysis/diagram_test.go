package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/profiledoc/pkg/config"
	"github.com/gofhir/profiledoc/pkg/registry"
)

const medicationRequest = `{
  "resourceType": "StructureDefinition", "id": "lmdi-medicationrequest", "type": "MedicationRequest",
  "kind": "resource", "baseDefinition": "http://hl7.org/fhir/StructureDefinition/MedicationRequest",
  "snapshot": {"element": [
    {"path": "MedicationRequest", "min": 0, "max": "*"},
    {"path": "MedicationRequest.status", "min": 1, "max": "1", "type": [{"code": "code"}]},
    {"path": "MedicationRequest.identifier", "min": 0, "max": "*", "type": [{"code": "Identifier"}],
     "slicing": {"rules": "open"}},
    {"path": "MedicationRequest.identifier", "sliceName": "local", "min": 0, "max": "1", "type": [{"code": "Identifier"}]},
    {"path": "MedicationRequest.subject", "min": 1, "max": "1", "type": [{"code": "Reference",
      "targetProfile": ["http://example.no/StructureDefinition/lmdi-patient"]}]},
    {"path": "MedicationRequest.performer", "min": 0, "max": "0", "type": [{"code": "Reference",
      "targetProfile": ["http://hl7.org/fhir/StructureDefinition/Practitioner"]}]},
    {"path": "MedicationRequest.requester", "min": 0, "max": "1", "type": [{"code": "Reference",
      "targetProfile": ["http://example.no/StructureDefinition/lmdi-practitioner",
                        "http://example.no/StructureDefinition/lmdi-organization"]}]},
    {"path": "MedicationRequest.reasonReference", "min": 0, "max": "*", "type": [{"code": "Reference",
      "targetProfile": ["http://hl7.org/fhir/StructureDefinition/Condition"]}]},
    {"path": "MedicationRequest.extension", "min": 0, "max": "*", "type": [{"code": "Extension"}]},
    {"path": "MedicationRequest.substitution", "min": 0, "max": "1", "type": [{"code": "BackboneElement"}]},
    {"path": "MedicationRequest.substitution.allowed[x]", "min": 1, "max": "1",
     "type": [{"code": "boolean"}, {"code": "CodeableConcept"}]}
  ]}
}`

const lmdiPatient = `{
  "resourceType": "StructureDefinition", "id": "lmdi-patient", "type": "Patient", "kind": "resource",
  "baseDefinition": "http://hl7.org/fhir/StructureDefinition/Patient",
  "differential": {"element": [{"path": "Patient.name", "min": 1, "type": [{"code": "HumanName"}]}]}
}`

type fakeResolver struct {
	docs  map[string]*registry.StructureDefinition
	calls []string
}

func (f *fakeResolver) LoadBase(_ context.Context, baseURL string) (*registry.StructureDefinition, error) {
	f.calls = append(f.calls, baseURL)
	if sd, ok := f.docs[baseURL]; ok {
		return sd, nil
	}
	return nil, errors.New("not found")
}

func attributeLines(s *Structure) []string {
	var out []string
	for _, a := range s.Attributes {
		line := a.Name + " : " + a.Type + " [" + a.Cardinality.String() + "]"
		if a.SliceName != "" {
			line += " (" + a.SliceName + ")"
		}
		out = append(out, line)
	}
	return out
}

func TestBuildStructure_Complete(t *testing.T) {
	s := BuildStructure(mustParse(t, medicationRequest), config.New(), ModeComplete)
	require.NotNil(t, s)

	assert.Equal(t, "Legemiddelrekvirering", s.Name)
	assert.Equal(t, "lmdi-medicationrequest", s.ID)
	assert.Equal(t, "MedicationRequest", s.BaseType)
	assert.True(t, s.Local)

	assert.Equal(t, []string{
		"status : code [1..1]",
		"identifier : Identifier [0..*] (sliced)",
		"identifier : Identifier [0..1] (local)",
		"substitution : BackboneElement [0..1]",
		"substitution.allowed[x] : boolean | CodeableConcept [0..1]",
	}, attributeLines(s))

	require.Len(t, s.References, 4)
	assert.Equal(t, Reference{Key: "subject", Target: "lmdi-patient", Field: "subject", Cardinality: s.References[0].Cardinality}, s.References[0])
	assert.Equal(t, "1..1", s.References[0].Cardinality.String())
	assert.Equal(t, "requester_to_lmdi-practitioner", s.References[1].Key)
	assert.Equal(t, "requester_to_lmdi-organization", s.References[2].Key)
	assert.Equal(t, "Condition", s.References[3].Target)
	assert.Equal(t, "0..*", s.References[3].Cardinality.String())
}

func TestBuildStructure_SkipsOtherKinds(t *testing.T) {
	sd := mustParse(t, `{"resourceType":"StructureDefinition","id":"x","kind":"logical"}`)
	assert.Nil(t, BuildStructure(sd, nil, ModeComplete))
}

func TestBuildDiagram_Complete(t *testing.T) {
	cfg := config.New()
	condition := mustParse(t, `{"resourceType":"StructureDefinition","id":"Condition","name":"Condition","type":"Condition",
	  "kind":"resource","baseDefinition":"http://hl7.org/fhir/StructureDefinition/DomainResource",
	  "snapshot":{"element":[{"path":"Condition"},{"path":"Condition.code","min":0,"max":"1","type":[{"code":"CodeableConcept"}]}]}}`)
	resolver := &fakeResolver{docs: map[string]*registry.StructureDefinition{
		"http://hl7.org/fhir/StructureDefinition/Condition": condition,
	}}

	structures := []*Structure{
		BuildStructure(mustParse(t, medicationRequest), cfg, ModeComplete),
		BuildStructure(mustParse(t, lmdiPatient), cfg, ModeComplete),
	}
	d := BuildDiagram(context.Background(), structures, DiagramOptions{Config: cfg, Resolver: resolver})

	var names []string
	for _, c := range d.Classes {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Legemiddelrekvirering", "Pasient", "Condition", "Helsepersonell", "Organisasjon"}, names)

	assert.Equal(t, "MedicationRequest", d.Classes[0].Stereotype)
	assert.Equal(t, config.DefaultLocalDocsURL+"lmdi-medicationrequest.html", d.Classes[0].DocURL)
	assert.Equal(t, "Patient", d.Classes[1].Stereotype)

	resolved := d.Classes[2]
	require.NotNil(t, resolved.Structure)
	assert.False(t, resolved.Structure.Local)
	assert.Empty(t, resolved.Stereotype)
	assert.Equal(t, "https://hl7.org/fhir/R4/condition.html", resolved.DocURL)

	unresolved := d.Classes[3]
	assert.Nil(t, unresolved.Structure)
	assert.Equal(t, "Resource", unresolved.Stereotype)
	assert.Equal(t, "https://hl7.org/fhir/R4/helsepersonell.html", unresolved.DocURL)

	require.Len(t, d.Edges, 4)
	assert.Equal(t, Edge{Source: "Legemiddelrekvirering", Target: "Pasient", Field: "subject", Cardinality: d.Edges[0].Cardinality}, d.Edges[0])
	assert.Equal(t, "Helsepersonell", d.Edges[1].Target)
	assert.Equal(t, "Organisasjon", d.Edges[2].Target)
	assert.Equal(t, "Condition", d.Edges[3].Target)

	assert.Len(t, resolver.calls, 3)
}

func TestBuildDiagram_References(t *testing.T) {
	cfg := config.New()
	s := BuildStructure(mustParse(t, medicationRequest), cfg, ModeReferences)
	require.NotNil(t, s)
	assert.Equal(t, "Legemiddelrekvirering", s.Name)

	d := BuildDiagram(context.Background(), []*Structure{s}, DiagramOptions{Mode: ModeReferences, Config: cfg})
	var names []string
	for _, c := range d.Classes {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Legemiddelrekvirering", "Pasient", "Helsepersonell", "Condition"}, names)

	require.Len(t, d.Edges, 3)
	assert.Equal(t, "requester", d.Edges[1].Field)
	assert.Equal(t, "0..1", d.Edges[1].Cardinality.String())
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("References")
	assert.True(t, ok)
	assert.Equal(t, ModeReferences, m)
	assert.Equal(t, "references", m.String())

	_, ok = ParseMode("sideways")
	assert.False(t, ok)
}
