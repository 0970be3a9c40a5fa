package render

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/gofhir/profiledoc/pkg/analysis"
)

// XMI namespaces.
const (
	NamespaceXMI = "http://www.omg.org/XMI"
	NamespaceUML = "http://www.omg.org/spec/UML/20131001"
	NamespaceEA  = "http://www.sparxsystems.com/ns/ea"
)

// Diagram grid: boxes of boxWidth x boxHeight starting at gridStart, two
// per column.
const (
	gridStart  = 100
	boxWidth   = 200
	boxHeight  = 100
	columnStep = 300
	rowStep    = 150
)

type xmiDocument struct {
	XMLName  xml.Name `xml:"xmi:XMI"`
	XMLNSXMI string   `xml:"xmlns:xmi,attr"`
	XMLNSUML string   `xml:"xmlns:uml,attr"`
	XMLNSEA  string   `xml:"xmlns:ea,attr"`
	Version  string   `xml:"version,attr"`
	ID       string   `xml:"xmi:id,attr"`
	Model    xmiModel `xml:"uml:Model"`
}

type xmiModel struct {
	ID      string     `xml:"xmi:id,attr"`
	Name    string     `xml:"name,attr"`
	Package xmiElement `xml:"uml:PackagedElement"`
}

// xmiElement is a uml:PackagedElement of any xmi:type.
type xmiElement struct {
	Type        string       `xml:"xmi:type,attr"`
	ID          string       `xml:"xmi:id,attr"`
	Name        string       `xml:"name,attr,omitempty"`
	DiagramType string       `xml:"ea:diagramType,attr,omitempty"`
	GUID        string       `xml:"ea:guid,attr,omitempty"`
	MemberEnd   *xmiRef      `xml:"uml:memberEnd,omitempty"`
	OwnedEnd    *xmiOwnedEnd `xml:"uml:ownedEnd,omitempty"`
	Elements    []xmiElement `xml:"uml:PackagedElement"`
	Objects     []xmiObject  `xml:"ea:DiagramObject"`
}

type xmiRef struct {
	IDRef string `xml:"xmi:idref,attr"`
}

type xmiOwnedEnd struct {
	Type        string   `xml:"xmi:type,attr"`
	ID          string   `xml:"xmi:id,attr"`
	Name        string   `xml:"name,attr"`
	Target      string   `xml:"type,attr"`
	Association string   `xml:"association,attr"`
	Upper       xmiValue `xml:"uml:upperValue"`
}

type xmiValue struct {
	Value string `xml:"value,attr"`
}

type xmiObject struct {
	ID       string `xml:"xmi:id,attr"`
	Geometry string `xml:"ea:geometry,attr"`
	Element  string `xml:"ea:element,attr"`
}

// XMI writes d as an XMI 2.1 document with a Sparx EA class diagram. Ids
// are random UUIDs.
func XMI(w io.Writer, d *analysis.Diagram) error {
	return writeXMI(w, d, uuid.NewString)
}

func writeXMI(w io.Writer, d *analysis.Diagram, newID func() string) error {
	pkg := xmiElement{Type: "uml:Package", ID: "pkg_" + newID(), Name: "FHIR Resources"}

	classIDs := make(map[string]string, len(d.Classes))
	for _, c := range d.Classes {
		id := "cls_" + newID()
		classIDs[c.Name] = id
		pkg.Elements = append(pkg.Elements, xmiElement{Type: "uml:Class", ID: id, Name: c.Name})
	}

	for _, e := range d.Edges {
		source, ok := classIDs[e.Source]
		target, ok2 := classIDs[e.Target]
		if !ok || !ok2 {
			continue
		}
		assocID := "assoc_" + newID()
		pkg.Elements = append(pkg.Elements, xmiElement{
			Type:      "uml:Association",
			ID:        assocID,
			MemberEnd: &xmiRef{IDRef: source},
			OwnedEnd: &xmiOwnedEnd{
				Type:        "uml:Property",
				ID:          "end_" + newID(),
				Name:        e.Field,
				Target:      target,
				Association: assocID,
				Upper:       xmiValue{Value: e.Cardinality.Upper()},
			},
		})
	}

	diagram := xmiElement{
		Type:        "uml:Diagram",
		ID:          "diag_" + newID(),
		Name:        "FHIR Resources Diagram",
		DiagramType: "Class",
		GUID:        newID(),
	}
	x, y := gridStart, gridStart
	for i, c := range d.Classes {
		diagram.Objects = append(diagram.Objects, xmiObject{
			ID:       "dobj_" + newID(),
			Geometry: fmt.Sprintf("Left=%d;Top=%d;Right=%d;Bottom=%d;", x, y, x+boxWidth, y+boxHeight),
			Element:  classIDs[c.Name],
		})
		if i%2 == 0 {
			x += columnStep
			y = gridStart
		} else {
			y += rowStep
		}
	}
	pkg.Elements = append(pkg.Elements, diagram)

	doc := xmiDocument{
		XMLNSXMI: NamespaceXMI,
		XMLNSUML: NamespaceUML,
		XMLNSEA:  NamespaceEA,
		Version:  "2.1",
		ID:       "root_" + newID(),
		Model:    xmiModel{ID: "model_" + newID(), Name: "FHIR Profiles", Package: pkg},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding XMI: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}
