package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/app"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgerror"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgroutine"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkguid"
)

// withEquipment opens the configured store without the HTTP server, runs fn
// and waits for background work before closing everything.
func withEquipment(ctx context.Context, fn func(ctx context.Context, mod *equipment.Module) error) (err error) {
	cfg, err := app.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	defer cfg.Close()

	sf, err := pkguid.NewSnowflake(cfg.GetInt("id.node"))
	if err != nil {
		return fmt.Errorf("init snowflake: %w", err)
	}

	runner := pkgroutine.NewManager(10)
	mod, err := equipment.New(equipment.Dependency{
		Config:    cfg,
		Goroutine: runner,
		Context:   ctx,
		ID:        sf,
		EventID:   pkguid.NewUUID(),
	})
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, runner.Wait(), mod.Close(ctx))
	}()

	return describe(fn(ctx, mod))
}

// describe keeps the user-facing message and details of application errors.
func describe(err error) error {
	var perr *pkgerror.Error
	if !errors.As(err, &perr) {
		return err
	}

	msg := perr.Msg()
	if perr.Code() == pkgerror.CodeInternal {
		msg = perr.Error()
	}
	if details := perr.Details(); len(details) > 0 {
		b, _ := json.Marshal(details)
		msg = fmt.Sprintf("%s %s", msg, b)
	}
	return fmt.Errorf("%s (%s)", msg, perr.Code())
}

func parseDatasetID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid dataset id %q", raw)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
