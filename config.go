package cardcache

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/always-cache/card-cache/cache"
	responsetransformer "github.com/always-cache/card-cache/pkg/response-transformer"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	DefaultVersion      = "v1.0.0"
	DefaultContactsPath = "data/contacts.json"
)

// DefaultAssets are fetched at install, relative to the base path.
// The empty path is the base path itself.
var DefaultAssets = []string{
	"",
	"index.html",
	"style.css",
	"env.js",
	DefaultContactsPath,
	"manifest.webmanifest",
	"icons/icon-192.png",
	"icons/icon-512.png",
}

type Config struct {
	// Storage for the versioned stores.
	Cache cache.Provider
	// URL of the origin server.
	// Origins with paths are not supported, use BasePath instead.
	OriginURL url.URL
	// Hostname to use for HTTP requests and TLS negotiation.
	// Use if needed if e.g. the origin URL is just an IP address.
	OriginHost string
	// Path the cache is in control of, e.g. "/card/". Defaults to "/".
	BasePath string
	// Version of the stores. Installing a new version replaces all stores.
	Version string
	// Assets to store at install, relative to BasePath. DefaultAssets if nil.
	Assets []string
	// Contact data resource relative to BasePath. DefaultContactsPath if empty.
	ContactsPath string
	// Optional header rules for origin responses.
	Rules responsetransformer.Rules
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Registerer for the cache metrics. Metrics are not registered if nil.
	Registerer prometheus.Registerer
	// Transport for origin requests. http.DefaultTransport is used if nil.
	Transport http.RoundTripper
}

// Options are the scalar settings, read from the settings file and the environment.
type Options struct {
	Origin   string   `yaml:"origin" env:"CARD_CACHE_ORIGIN"`
	Host     string   `yaml:"host" env:"CARD_CACHE_HOST"`
	Port     int      `yaml:"port" env:"CARD_CACHE_PORT"`
	Base     string   `yaml:"base" env:"CARD_CACHE_BASE"`
	Version  string   `yaml:"version" env:"CARD_CACHE_VERSION"`
	DB       string   `yaml:"db" env:"CARD_CACHE_DB"`
	Assets   []string `yaml:"assets" env:"CARD_CACHE_ASSETS" envSeparator:","`
	Contacts string   `yaml:"contacts" env:"CARD_CACHE_CONTACTS"`
	Trace    bool     `yaml:"trace" env:"CARD_CACHE_TRACE"`
	LogFile  string   `yaml:"logFile" env:"CARD_CACHE_LOG_FILE"`
}

type Settings struct {
	Options `yaml:",inline"`
	Rules   responsetransformer.Rules `yaml:"rules"`
}

func DefaultSettings() Settings {
	return Settings{
		Options: Options{
			Port:     8080,
			Base:     "/",
			Version:  DefaultVersion,
			DB:       "card-cache.db",
			Contacts: DefaultContactsPath,
		},
	}
}

// LoadSettings reads the settings file, if any, on top of the defaults
// and then applies CARD_CACHE_* environment variables.
func LoadSettings(filename string) (Settings, error) {
	settings := DefaultSettings()
	if filename != "" {
		b, err := os.ReadFile(filename)
		if err != nil {
			return settings, err
		}
		if err := yaml.Unmarshal(b, &settings); err != nil {
			return settings, fmt.Errorf("parse %s: %w", filename, err)
		}
	}
	if err := env.Parse(&settings.Options); err != nil {
		return settings, fmt.Errorf("parse env: %w", err)
	}
	return settings, nil
}

// normalizeBase makes sure the base path starts and ends with a slash.
func normalizeBase(base string) string {
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}
