// Package profiledoc renders human-readable reports from FHIR StructureDefinitions.
//
// A profile document is loaded from disk or over HTTP, its element list is
// flattened (from the snapshot, or reconstructed from the differential on top
// of the base resource), every element is classified, and the result is
// printed by one of several formatters.
//
// # Quick Start
//
//	l := loader.New(loader.WithCacheDir("base_resources"))
//	sd, err := l.Load(ctx, "StructureDefinition-lmdi-patient.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	base, _ := l.LoadBase(ctx, sd.BaseDefinition)
//
//	report, err := analysis.BuildElementReport(sd, base, config.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	render.Elements(os.Stdout, report)
//
// # Reports
//
//   - Elements: Markdown tables of cardinality, type and binding against the base
//   - Texts: short/definition/comment comparison as Markdown or HTML
//   - Diagram: PlantUML or XMI class diagrams of profile references
//   - List: simple, detailed, tree and references listings of a snapshot
//   - Changes: per-element changes plus a generated example instance
//   - GoStruct: Go struct skeleton for a profile
//
// # Architecture
//
// The pipeline is strictly sequential:
//
//   - batch: input file resolution and the sequential per-file loop
//   - loader: local files, HTTP with bounded retries, on-disk base cache
//   - fsh: FHIR Shorthand profiles as an alternative input
//   - snapshot: effective elements, shallow differential merge
//   - cardinality, slicing, element: classification rules
//   - analysis: report models
//   - query: prefix and FHIRPath element filters for listings
//   - render: Markdown, HTML, PlantUML, XMI, listing and Go formatters
package profiledoc
