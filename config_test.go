package cardcache

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const testSettings = `
origin: https://cards.example
port: 9000
base: /team/
version: v2.0.0
assets:
  - ""
  - index.html
rules:
  - prefix: /team/icons/
    defaults:
      Cache-Control: max-age=86400
`

func writeSettings(t *testing.T, content string) string {
	filename := filepath.Join(t.TempDir(), "card-cache.yml")
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return filename
}

func TestLoadSettingsDefaults(t *testing.T) {
	settings, err := LoadSettings("")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(settings, DefaultSettings()) {
		t.Fatalf("Settings are %+v", settings)
	}
}

func TestLoadSettingsFile(t *testing.T) {
	settings, err := LoadSettings(writeSettings(t, testSettings))
	if err != nil {
		t.Fatal(err)
	}
	if settings.Origin != "https://cards.example" || settings.Port != 9000 || settings.Version != "v2.0.0" {
		t.Fatalf("Settings are %+v", settings)
	}
	if !reflect.DeepEqual(settings.Assets, []string{"", "index.html"}) {
		t.Fatalf("Assets are %v", settings.Assets)
	}
	// defaults are kept for missing keys
	if settings.DB != "card-cache.db" || settings.Contacts != DefaultContactsPath {
		t.Fatalf("Settings are %+v", settings)
	}
	if len(settings.Rules) != 1 || settings.Rules[0].Defaults["Cache-Control"] != "max-age=86400" {
		t.Fatalf("Rules are %+v", settings.Rules)
	}
}

func TestLoadSettingsEnvOverridesFile(t *testing.T) {
	t.Setenv("CARD_CACHE_VERSION", "v3.0.0")
	t.Setenv("CARD_CACHE_ASSETS", "style.css,env.js")
	t.Setenv("CARD_CACHE_TRACE", "true")

	settings, err := LoadSettings(writeSettings(t, testSettings))
	if err != nil {
		t.Fatal(err)
	}
	if settings.Version != "v3.0.0" || !settings.Trace {
		t.Fatalf("Settings are %+v", settings)
	}
	if !reflect.DeepEqual(settings.Assets, []string{"style.css", "env.js"}) {
		t.Fatalf("Assets are %v", settings.Assets)
	}
	if settings.Port != 9000 {
		t.Fatalf("Port is %d", settings.Port)
	}
}

func TestLoadSettingsErrors(t *testing.T) {
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("Missing file accepted")
	}
	if _, err := LoadSettings(writeSettings(t, "port: [")); err == nil {
		t.Fatal("Invalid YAML accepted")
	}
	t.Setenv("CARD_CACHE_PORT", "eighty")
	if _, err := LoadSettings(""); err == nil {
		t.Fatal("Invalid port accepted")
	}
}

func TestNormalizeBase(t *testing.T) {
	for base, expected := range map[string]string{
		"":       "/",
		"/":      "/",
		"team":   "/team/",
		"/team":  "/team/",
		"/team/": "/team/",
	} {
		if normalized := normalizeBase(base); normalized != expected {
			t.Fatalf("%q normalized to %q", base, normalized)
		}
	}
}
