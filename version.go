package profiledoc

import "strings"

// Version is the profiledoc release.
const Version = "0.3.0"

// FHIRVersion represents a FHIR specification version.
type FHIRVersion string

// Supported FHIR versions.
const (
	// R4 is FHIR Release 4 (4.0.1)
	R4 FHIRVersion = "R4"
	// R4B is FHIR Release 4B (4.3.0)
	R4B FHIRVersion = "R4B"
	// R5 is FHIR Release 5 (5.0.0)
	R5 FHIRVersion = "R5"
)

// String returns the version string.
func (v FHIRVersion) String() string {
	return string(v)
}

// IsValid returns true if this is a supported FHIR version.
func (v FHIRVersion) IsValid() bool {
	_, ok := versionConfigs[v]
	return ok
}

// ParseFHIRVersion accepts "R4", "r4b" or a numeric version such as "4.0.1".
func ParseFHIRVersion(s string) (FHIRVersion, bool) {
	s = strings.TrimSpace(s)
	for v, cfg := range versionConfigs {
		if strings.EqualFold(s, string(v)) || s == cfg.FHIRVersionString {
			return v, true
		}
	}
	return "", false
}

// versionConfig holds version-specific configuration.
type versionConfig struct {
	// FHIRVersionString is the version string used in StructureDefinitions
	FHIRVersionString string

	// SpecBaseURL is where base StructureDefinitions are fetched from
	SpecBaseURL string

	// DocsBaseURL is the human-readable specification site
	DocsBaseURL string
}

// versionConfigs maps FHIR versions to their configurations.
var versionConfigs = map[FHIRVersion]versionConfig{
	R4: {
		FHIRVersionString: "4.0.1",
		SpecBaseURL:       "http://hl7.org/fhir/R4",
		DocsBaseURL:       "https://hl7.org/fhir/R4/",
	},
	R4B: {
		FHIRVersionString: "4.3.0",
		SpecBaseURL:       "http://hl7.org/fhir/R4B",
		DocsBaseURL:       "https://hl7.org/fhir/R4B/",
	},
	R5: {
		FHIRVersionString: "5.0.0",
		SpecBaseURL:       "http://hl7.org/fhir/R5",
		DocsBaseURL:       "https://hl7.org/fhir/R5/",
	},
}

// SpecBaseURL returns the base URL used to fetch core StructureDefinitions.
// Unknown versions fall back to R4.
func (v FHIRVersion) SpecBaseURL() string {
	cfg, ok := versionConfigs[v]
	if !ok {
		cfg = versionConfigs[R4]
	}
	return cfg.SpecBaseURL
}

// DocsBaseURL returns the public documentation site for the version,
// always ending in a slash.
func (v FHIRVersion) DocsBaseURL() string {
	cfg, ok := versionConfigs[v]
	if !ok {
		cfg = versionConfigs[R4]
	}
	return cfg.DocsBaseURL
}

// Number returns the numeric version string, e.g. "4.0.1".
func (v FHIRVersion) Number() string {
	return versionConfigs[v].FHIRVersionString
}
