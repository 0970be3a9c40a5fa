package profiledoc

import (
	"strings"
	"testing"
)

func TestFHIRVersion_String(t *testing.T) {
	tests := []struct {
		version FHIRVersion
		want    string
	}{
		{R4, "R4"},
		{R4B, "R4B"},
		{R5, "R5"},
	}

	for _, tt := range tests {
		if got := tt.version.String(); got != tt.want {
			t.Errorf("%v.String() = %q; want %q", tt.version, got, tt.want)
		}
	}
}

func TestFHIRVersion_IsValid(t *testing.T) {
	tests := []struct {
		version FHIRVersion
		want    bool
	}{
		{R4, true},
		{R4B, true},
		{R5, true},
		{"R3", false},
		{"invalid", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tt.version.IsValid(); got != tt.want {
			t.Errorf("%v.IsValid() = %v; want %v", tt.version, got, tt.want)
		}
	}
}

func TestParseFHIRVersion(t *testing.T) {
	tests := []struct {
		in   string
		want FHIRVersion
		ok   bool
	}{
		{"R4", R4, true},
		{"r4b", R4B, true},
		{"5.0.0", R5, true},
		{" 4.0.1 ", R4, true},
		{"STU3", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseFHIRVersion(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseFHIRVersion(%q) = (%q, %v); want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFHIRVersion_URLs(t *testing.T) {
	if got := R4.SpecBaseURL(); got != "http://hl7.org/fhir/R4" {
		t.Errorf("R4.SpecBaseURL() = %q", got)
	}
	if got := R4.DocsBaseURL(); got != "https://hl7.org/fhir/R4/" {
		t.Errorf("R4.DocsBaseURL() = %q", got)
	}
	for _, v := range []FHIRVersion{R4, R4B, R5} {
		if !strings.HasSuffix(v.DocsBaseURL(), "/") {
			t.Errorf("%v.DocsBaseURL() must end with a slash", v)
		}
		if strings.HasSuffix(v.SpecBaseURL(), "/") {
			t.Errorf("%v.SpecBaseURL() must not end with a slash", v)
		}
	}

	// Unknown versions fall back to R4.
	if got := FHIRVersion("R2").SpecBaseURL(); got != R4.SpecBaseURL() {
		t.Errorf("fallback SpecBaseURL = %q", got)
	}
}

func TestFHIRVersion_Number(t *testing.T) {
	if got := R4.Number(); got != "4.0.1" {
		t.Errorf("R4.Number() = %q; want 4.0.1", got)
	}
	if got := FHIRVersion("x").Number(); got != "" {
		t.Errorf("unknown Number() = %q; want empty", got)
	}
}
