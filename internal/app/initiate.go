package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgconfig"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkglog"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgrouter"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgroutine"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkguid"
	"github.com/rs/cors"
)

// Defaults are the values used for keys missing from the config file.
func Defaults() map[string]any {
	return map[string]any{
		"tz":                   "UTC",
		"log.level":            "info",
		"id.node":              -1,
		"server.address.http":  ":8080",
		"cors.allowed_origins": "*",

		"modules.equipment.enabled":                 true,
		"modules.equipment.storage.driver":          "sqlite",
		"modules.equipment.storage.sqlite.path":     "./data/chemvis.db",
		"modules.equipment.retention.limit":         5,
		"modules.equipment.ingest.max_retries":      3,
		"modules.equipment.ingest.base_backoff_ms":  50,
		"modules.equipment.ingest.max_upload_bytes": 10 << 20,
	}
}

// ResolveConfigPath returns path, or the default location when path is empty.
func ResolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if os.Getenv("LOCAL") == "true" {
		return "./config/config.yaml"
	}
	return "/config/config.yaml"
}

// LoadConfig reads the config file, applies the timezone and log level, and
// returns the loaded configuration.
func LoadConfig(path string) (pkgconfig.Config, error) {
	path = ResolveConfigPath(path)

	cfg, err := pkgconfig.NewViper(path, Defaults())
	if err != nil {
		return nil, fmt.Errorf("failed to init config %s: %w", path, err)
	}

	//nolint:errcheck,gosec // ignore error
	os.Setenv("TZ", cfg.GetString("tz"))

	pkglog.InitLogging(cfg.GetString("log.level"))

	return cfg, nil
}

func (a *App) initConfig(path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}

	a.config = cfg
	return nil
}

func (a *App) initLibraries() error {
	a.goroutine = pkgroutine.NewManager(100)
	a.uuid = pkguid.NewUUID()

	sf, err := pkguid.NewSnowflake(a.config.GetInt("id.node"))
	if err != nil {
		return fmt.Errorf("failed to init snowflake: %w", err)
	}
	a.snowflake = sf

	tokens := pkgrouter.StaticTokens(a.config.GetMap("auth.tokens"))
	if len(tokens) == 0 {
		slog.Warn("no auth tokens configured, every dataset request will be rejected")
	}
	a.auth = tokens

	return nil
}

func (a *App) initHTTPServer() error {
	a.router = pkgrouter.NewRouter(a.uuid)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins(a.config.GetArray("cors.allowed_origins")),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	})

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("server.address.http"),
		Handler:           corsHandler.Handler(a.router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return nil
}

func allowedOrigins(raw []string) []string {
	origins := make([]string, 0, len(raw))
	for _, o := range raw {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func (a *App) initClosers() {
	if a.closerFn == nil {
		a.closerFn = map[string]func(context.Context) error{}
	}

	a.closerFn["HTTP Server"] = func(ctx context.Context) error {
		return a.httpServer.Shutdown(ctx)
	}
	a.closerFn["Config"] = func(context.Context) error {
		return a.config.Close()
	}
}
