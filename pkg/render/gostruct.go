package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/iancoleman/strcase"

	"github.com/gofhir/profiledoc/pkg/analysis"
	"github.com/gofhir/profiledoc/pkg/cardinality"
)

// FHIRModelPackage is the package complex FHIR types are taken from in
// generated code.
const FHIRModelPackage = "github.com/gofhir/fhir/r4"

var goPrimitives = map[string]string{
	"boolean":      "bool",
	"integer":      "int",
	"positiveInt":  "int",
	"unsignedInt":  "int",
	"integer64":    "int64",
	"decimal":      "float64",
	"string":       "string",
	"code":         "string",
	"id":           "string",
	"uri":          "string",
	"url":          "string",
	"canonical":    "string",
	"markdown":     "string",
	"oid":          "string",
	"uuid":         "string",
	"date":         "string",
	"dateTime":     "string",
	"instant":      "string",
	"time":         "string",
	"base64Binary": "string",
	"xhtml":        "string",
}

// GoStruct writes a Go source file declaring one struct per structure, with
// a field per attribute and reference. BackboneElement attributes become
// nested struct types.
func GoStruct(w io.Writer, pkg string, structures []*analysis.Structure) error {
	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by profiledoc. DO NOT EDIT.")

	for _, s := range structures {
		typeName := strcase.ToCamel(s.Name)
		f.Commentf("%s is generated from %s (%s).", typeName, s.ID, s.BaseType)
		f.Type().Id(typeName).StructFunc(func(g *jen.Group) {
			g.Id("ResourceType").String().Tag(map[string]string{"json": "resourceType"})
			g.Id("ID").Op("*").String().Tag(map[string]string{"json": "id,omitempty"})
			structFields(g, typeName, "", s.Attributes)
			for _, ref := range uniqueReferences(s.References) {
				field(g, ref.Field, jen.Qual(FHIRModelPackage, "Reference"), ref.Cardinality)
			}
		})

		for _, a := range s.Attributes {
			if a.Type == "BackboneElement" && !strings.Contains(a.Name, ".") {
				nested := typeName + strcase.ToCamel(a.Name)
				f.Commentf("%s is the %s element of %s.", nested, a.Name, typeName)
				f.Type().Id(nested).StructFunc(func(g *jen.Group) {
					structFields(g, typeName, a.Name+".", s.Attributes)
				})
			}
		}
	}

	if err := f.Render(w); err != nil {
		return fmt.Errorf("rendering Go source: %w", err)
	}
	return nil
}

// structFields adds the attributes directly below prefix. Attributes that
// repeat a name, such as slices, are added once.
func structFields(g *jen.Group, typeName, prefix string, attrs []analysis.Attribute) {
	seen := make(map[string]bool)
	for _, a := range attrs {
		name, ok := strings.CutPrefix(a.Name, prefix)
		if !ok || strings.Contains(name, ".") || seen[name] {
			continue
		}
		seen[name] = true

		if a.Type == "BackboneElement" {
			field(g, name, jen.Id(typeName+strcase.ToCamel(name)), a.Cardinality)
			continue
		}
		if stem, ok := strings.CutSuffix(name, "[x]"); ok {
			for _, code := range strings.Split(a.Type, " | ") {
				// each choice allows at most one value
				field(g, stem+strcase.ToCamel(code), goType(code), cardinality.New(0, "1"))
			}
			continue
		}
		field(g, name, goType(a.Type), a.Cardinality)
	}
}

func field(g *jen.Group, name string, typ *jen.Statement, c cardinality.Cardinality) {
	tag := name
	switch {
	case c.Max != "0" && c.Max != "1":
		typ = jen.Index().Add(typ)
		tag += ",omitempty"
	case c.Min == 0:
		typ = jen.Op("*").Add(typ)
		tag += ",omitempty"
	}
	g.Id(strcase.ToCamel(name)).Add(typ).Tag(map[string]string{"json": tag})
}

func goType(code string) *jen.Statement {
	if t, ok := goPrimitives[code]; ok {
		return jen.Id(t)
	}
	if code == "" || code == "unknown" {
		return jen.Qual("encoding/json", "RawMessage")
	}
	return jen.Qual(FHIRModelPackage, code)
}

// uniqueReferences returns one reference per field. Fields with several
// targets are still one Reference field.
func uniqueReferences(refs []analysis.Reference) []analysis.Reference {
	seen := make(map[string]bool)
	var out []analysis.Reference
	for _, ref := range refs {
		if !seen[ref.Field] {
			seen[ref.Field] = true
			out = append(out, ref)
		}
	}
	return out
}
