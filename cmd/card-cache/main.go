package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	cardcache "github.com/always-cache/card-cache"
	"github.com/always-cache/card-cache/cache"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag string
	originFlag         string
	hostFlag           string
	portFlag           int
	baseFlag           string
	versionFlag        string
	dbFilenameFlag     string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	buildVersion string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to YAML settings file")
	flag.StringVar(&originFlag, "origin", "", "Origin URL of the site")
	flag.StringVar(&hostFlag, "host", "", "Hostname of origin, if different from the origin URL")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&baseFlag, "base", "/", "Base path of the site")
	flag.StringVar(&versionFlag, "version", cardcache.DefaultVersion, "Version of the stores")
	flag.StringVar(&dbFilenameFlag, "db", "card-cache.db", "Store DB file name (use 'memory' for in-memory stores)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if buildVersion == "" {
		buildVersion = "DEV"
	}
}

// loadSettings reads file and environment settings, then applies the flags given on the command line.
func loadSettings() (cardcache.Settings, error) {
	settings, err := cardcache.LoadSettings(configFilenameFlag)
	if err != nil {
		return settings, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "origin":
			settings.Origin = originFlag
		case "host":
			settings.Host = hostFlag
		case "port":
			settings.Port = portFlag
		case "base":
			settings.Base = baseFlag
		case "version":
			settings.Version = versionFlag
		case "db":
			settings.DB = dbFilenameFlag
		case "vv":
			settings.Trace = verbosityTraceFlag
		case "log-file":
			settings.LogFile = logFilenameFlag
		}
	})
	return settings, nil
}

func main() {
	flag.Parse()

	settings, err := loadSettings()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load settings")
	}

	// set log level
	logLevel := zerolog.DebugLevel
	if settings.Trace {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if settings.LogFile != "" {
		if logFileOutput, err := os.OpenFile(settings.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			defer logFileOutput.Close()
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("build", buildVersion).Logger()

	if settings.Origin == "" {
		log.Fatal().Msg("Please specify origin")
	}
	originUrl, err := url.Parse(settings.Origin)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse origin url")
	}

	var provider cache.Provider
	if settings.DB == "memory" {
		provider = cache.NewMemProvider()
	} else {
		sqlite, err := cache.NewSQLiteProvider(settings.DB)
		if err != nil {
			log.Fatal().Err(err).Str("db", settings.DB).Msg("Could not open store DB")
		}
		defer sqlite.Close()
		provider = sqlite
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ccache, err := cardcache.CreateCache(cardcache.Config{
		Cache:        provider,
		OriginURL:    *originUrl,
		OriginHost:   settings.Host,
		BasePath:     settings.Base,
		Version:      settings.Version,
		Assets:       settings.Assets,
		ContactsPath: settings.Contacts,
		Rules:        settings.Rules,
		Logger:       &log.Logger,
		Registerer:   registry,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create cache")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ccache.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Could not start cache")
	}

	go reloadOnHangup(ctx, ccache)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", settings.Port),
		Handler:           cardcache.NewHandler(ccache, registry, log.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Could not shut down server")
		}
	}()

	log.Info().Msgf("Serving %s on port %v (version %s)", originUrl.String(), settings.Port, ccache.Version())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	ccache.Wait()
}

// reloadOnHangup reloads the settings on SIGHUP and updates the stores when the version changed.
func reloadOnHangup(ctx context.Context, ccache *cardcache.CardCache) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}
		settings, err := loadSettings()
		if err != nil {
			log.Error().Err(err).Msg("Could not reload settings")
			continue
		}
		if settings.Version == ccache.Version() {
			log.Info().Str("version", settings.Version).Msg("Version unchanged, nothing to update")
			continue
		}
		if err := ccache.Update(ctx, settings.Version); err != nil {
			log.Error().Err(err).Str("version", settings.Version).Msg("Update failed, keeping current version")
		}
	}
}
