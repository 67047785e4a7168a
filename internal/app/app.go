package app

import (
	"context"
	"net/http"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgconfig"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkglog"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgrouter"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgroutine"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkguid"
)

type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config pkgconfig.Config

	// libraries
	uuid      pkguid.StringID
	snowflake pkguid.NumberID
	goroutine *pkgroutine.Manager
	auth      pkgrouter.Authenticator

	// server
	router     *pkgrouter.Router
	httpServer *http.Server

	//
	closerFn map[string]func(context.Context) error
}

// New wires the HTTP service from the config file at configPath (see
// ResolveConfigPath for the default).
func New(configPath string) (*App, error) {
	pkglog.InitLogging("info")

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	steps := []func() error{
		func() error { return app.initConfig(configPath) },
		app.initLibraries,
		app.initHTTPServer,
		app.initModules,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			cancel()
			return nil, err
		}
	}
	app.initClosers()

	return app, nil
}
