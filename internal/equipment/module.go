package equipment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/event"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/inbound"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/report"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/store"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/usecase"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgconfig"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkglog"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgrouter"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgroutine"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkguid"
)

const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type Dependency struct {
	Config    pkgconfig.Config
	Goroutine *pkgroutine.Manager
	Context   context.Context
	ID        pkguid.NumberID
	EventID   pkguid.StringID

	// Router and Auth are optional; without a Router no HTTP endpoints are
	// registered (the CLI uses the module this way).
	Router *pkgrouter.Router
	Auth   pkgrouter.Authenticator
}

// Module is the wired equipment dataset feature.
type Module struct {
	Usecase *usecase.Usecase

	closers []func(context.Context) error
}

func New(dep Dependency) (*Module, error) {
	if dep.Config == nil || dep.Goroutine == nil || dep.ID == nil {
		return nil, errors.New("equipment: missing dependency")
	}
	if dep.EventID == nil {
		dep.EventID = pkguid.NewUUID()
	}

	m := &Module{}

	storage, err := m.openStore(dep.Config)
	if err != nil {
		return nil, err
	}

	bus := event.NewBus(512)
	consumer := event.NewConsumer(bus, event.AuditLogger{}, event.ConsumerConfig{
		Workers:     2,
		MaxRetries:  3,
		BaseBackoff: 200 * time.Millisecond,
	})
	consumer.Start()
	// Runs before the store closes: closers are unwound in reverse.
	m.closers = append(m.closers, consumer.Stop)

	uc := usecase.New(usecase.Dependency{
		Store:       storage,
		Reporter:    report.NewAssembler(pkglog.ServiceName),
		Events:      bus,
		Runner:      dep.Goroutine,
		ID:          dep.ID,
		EventID:     dep.EventID,
		RootCtx:     dep.Context,
		Retention:   usecase.Retention{Limit: int(dep.Config.GetInt("modules.equipment.retention.limit"))},
		MaxRetries:  int(dep.Config.GetInt("modules.equipment.ingest.max_retries")),
		BaseBackoff: time.Duration(dep.Config.GetInt("modules.equipment.ingest.base_backoff_ms")) * time.Millisecond,
	})
	m.Usecase = uc

	if dep.Router != nil {
		inbound.RegisterHTTPEndpoint(dep.Router, uc, dep.Auth, inbound.Options{
			MaxUploadBytes: dep.Config.GetInt("modules.equipment.ingest.max_upload_bytes"),
		})
	}

	return m, nil
}

func (m *Module) openStore(cfg pkgconfig.Config) (usecase.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.GetString("modules.equipment.storage.driver")))

	switch driver {
	case DriverMemory:
		slog.Warn("equipment datasets are kept in memory and lost on restart")
		return store.NewInMemoryStore(), nil
	case DriverSQLite, "":
		sqlCfg := store.DefaultSQLiteConfig(cfg.GetString("modules.equipment.storage.sqlite.path"))
		if ms := cfg.GetInt("modules.equipment.storage.sqlite.busy_timeout_ms"); ms > 0 {
			sqlCfg.BusyTimeout = time.Duration(ms) * time.Millisecond
		}
		if sync := cfg.GetString("modules.equipment.storage.sqlite.synchronous"); sync != "" {
			sqlCfg.Synchronous = strings.ToUpper(sync)
		}

		s, err := store.OpenSQLite(sqlCfg)
		if err != nil {
			return nil, fmt.Errorf("equipment: %w", err)
		}
		m.closers = append(m.closers, func(context.Context) error { return s.Close() })
		return s, nil
	default:
		return nil, fmt.Errorf("equipment: unknown storage driver %q", driver)
	}
}

// Close stops the event consumer and releases the store.
func (m *Module) Close(ctx context.Context) error {
	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
