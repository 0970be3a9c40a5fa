package config

import "time"

// Default settings.
const (
	DefaultLocalDocsURL = "https://hl7norway.github.io/LMDI/currentbuild/StructureDefinition-"
	DefaultCacheDir     = "base_resources"
	DefaultFHIRVersion  = "R4"
	DefaultRetries      = 3
	DefaultTimeout      = 30 * time.Second
	DefaultLogLevel     = "info"
)

// DefaultNames returns the built-in profile id to display name table.
func DefaultNames() map[string]string {
	return map[string]string{
		"lmdi-bundle":                   "LegemiddelregisterBundle",
		"lmdi-condition":                "Diagnose",
		"lmdi-encounter":                "Episode",
		"lmdi-episodeofcare":            "Institusjonsopphold",
		"lmdi-medication":               "Legemiddel",
		"lmdi-medicationadministration": "Legemiddeladministrering",
		"lmdi-medicationrequest":        "Legemiddelrekvirering",
		"lmdi-organization":             "Organisasjon",
		"lmdi-patient":                  "Pasient",
		"lmdi-practitioner":             "Helsepersonell",
		"lmdi-practitionerrole":         "Helsepersonellrolle",
		"lmdi-adresse":                  "Adresse",
		"lmdi-diagnose":                 "Diagnose",
		"lmdi-institusjonsopphold":      "Institusjonsopphold",
		"lmdi-legemiddel":               "Legemiddel",
		"lmdiLegemiddelrekvirering":     "Legemiddelrekvirering",
		"lmdLegemiddeladministrering":   "Legemiddeladministrering",
		"episode":                       "Episode",
	}
}

// DefaultSliceOIDs returns the Norwegian organisation identifier OIDs.
func DefaultSliceOIDs() []SliceOID {
	return []SliceOID{
		{OID: "2.16.578.1.12.4.1.4.101", Label: "ENH"},
		{OID: "2.16.578.1.12.4.1.4.102", Label: "RESH"},
	}
}

// DefaultStandardElements returns the elements never shown as attributes.
func DefaultStandardElements() []string {
	return []string{
		"id", "meta", "implicitRules", "language", "text", "contained",
		"extension", "modifierExtension", "resourceType",
	}
}
