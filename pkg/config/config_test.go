package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "base_resources", cfg.CacheDir)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Len(t, cfg.SliceOIDs, 2)
	assert.True(t, cfg.IsStandardElement("modifierExtension"))
	assert.False(t, cfg.IsStandardElement("identifier"))
}

func TestMapName(t *testing.T) {
	cfg := New()

	tests := []struct {
		id   string
		want string
	}{
		{"lmdi-patient", "Pasient"},
		{"StructureDefinition-lmdi-patient", "Pasient"},
		{"lmdiLegemiddelrekvirering", "Legemiddelrekvirering"},
		{"episode", "Episode"},
		{"Patient", "Patient"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := cfg.MapName(tt.id); got != tt.want {
			t.Errorf("MapName(%q) = %q; want %q", tt.id, got, tt.want)
		}
	}
}

func TestSliceLabel(t *testing.T) {
	cfg := New()

	tests := []struct {
		system string
		want   string
		ok     bool
	}{
		{"urn:oid:2.16.578.1.12.4.1.4.101", "ENH", true},
		{"urn:oid:2.16.578.1.12.4.1.4.102", "RESH", true},
		{"urn:oid:2.16.578.1.12.4.1.4.1", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := cfg.SliceLabel(tt.system)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SliceLabel(%q) = (%q, %v); want (%q, %v)", tt.system, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiledoc.yaml")
	content := `
names:
  lmdi-patient: Patient (LMDI)
  my-profile: Mine
sliceOids:
  - oid: 1.2.3
    label: LOCAL
cacheDir: cache
retries: 5
timeout: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Patient (LMDI)", cfg.MapName("lmdi-patient"))
	assert.Equal(t, "Mine", cfg.MapName("my-profile"))
	assert.Equal(t, "Legemiddel", cfg.MapName("lmdi-medication"), "defaults are kept")
	assert.Equal(t, "cache", cfg.CacheDir)
	assert.Equal(t, 5, cfg.Retries)
	assert.Equal(t, 10*time.Second, cfg.Timeout)

	label, ok := cfg.SliceLabel("urn:oid:1.2.3")
	assert.True(t, ok)
	assert.Equal(t, "LOCAL", label)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PROFILEDOC_CACHEDIR", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.CacheDir)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New().WriteYAML(&buf))

	path := filepath.Join(t.TempDir(), "profiledoc.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Legemiddelrekvirering", cfg.MapName("lmdiLegemiddelrekvirering"))
	assert.Equal(t, New().SliceOIDs, cfg.SliceOIDs)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}
