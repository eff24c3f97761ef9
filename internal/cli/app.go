package cli

import (
	"context"
	"fmt"

	"github.com/openstall/stallpos/internal/bus"
	"github.com/openstall/stallpos/internal/config"
	"github.com/openstall/stallpos/internal/pos"
	"github.com/openstall/stallpos/internal/print"
	"github.com/openstall/stallpos/internal/store"
)

// App bundles the wired components a command needs. Close releases the
// store and cancels pending sync retries.
type App struct {
	Config  config.Config
	Store   *store.Store
	Bus     *bus.Bus
	Engine  *pos.Engine
	Printer *print.Manager
}

// newApp loads the configuration, opens the store, seeds the menu on first
// run and wires the engine and print queue.
func newApp(ctx context.Context, opts *RootOptions) (*App, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	b := bus.New()
	engine := pos.New(s, b, pos.NewHTTPRemote(cfg.APIBaseURL), cfg.DeviceID,
		pos.WithBackoff(cfg.Backoff.BaseDelay(), cfg.Backoff.MaxDelay()))

	if _, err := engine.SeedMenu(ctx, pos.DefaultCatalog()); err != nil {
		engine.Close()
		s.Close()
		return nil, err
	}

	var driver print.Driver = print.ConsoleDriver{}
	if cfg.Printer == "escpos" {
		driver = print.DeviceDriver{Path: cfg.PrinterDevice}
	}
	printer := print.NewManager(s, b, driver, cfg.DeviceID)

	return &App{
		Config:  cfg,
		Store:   s,
		Bus:     b,
		Engine:  engine,
		Printer: printer,
	}, nil
}

// Close tears down the app in reverse wiring order.
func (a *App) Close() {
	a.Engine.Close()
	a.Store.Close()
}
