package cli

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/classver/internal/bridge"
	"github.com/roach88/classver/internal/classtree"
	"github.com/roach88/classver/internal/config"
	"github.com/roach88/classver/internal/metrics"
	"github.com/roach88/classver/internal/store"
	"github.com/roach88/classver/internal/txn"
	"github.com/roach88/classver/internal/versioning"
)

// app wires one command invocation: store, live tree, manager and
// transaction controller.
type app struct {
	cfg      config.Config
	store    *store.Store
	forest   *classtree.Forest
	manager  *versioning.Manager
	bridge   *bridge.Bridge
	registry *prometheus.Registry
	metrics  *metrics.Recorder
	logger   *slog.Logger
	out      *OutputFormatter
}

// openApp opens the configured database. Read-only apps reject every
// write at the store.
func openApp(cmd *cobra.Command, opts *RootOptions, readOnly bool) (*app, error) {
	cfg, err := opts.settings()
	if err != nil {
		return nil, err
	}
	logger := opts.logger(cmd)

	var st *store.Store
	if readOnly {
		st, err = store.OpenReadOnly(cfg.DB)
	} else {
		st, err = store.Open(cfg.DB)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	logger.Debug("database ready", "path", cfg.DB, "read_only", readOnly)

	registry := prometheus.NewRegistry()
	rec := metrics.New(registry)

	mopts := cfg.ManagerOptions()
	mopts.Logger = logger
	mopts.Metrics = rec
	manager := versioning.New(st, mopts)
	forest := classtree.New()

	return &app{
		cfg:      cfg,
		store:    st,
		forest:   forest,
		manager:  manager,
		bridge:   bridge.New(forest, manager, versioning.SystemClock, logger),
		registry: registry,
		metrics:  rec,
		logger:   logger,
		out:      opts.formatter(cmd),
	}, nil
}

// controller returns a transaction controller committing in mode.
func (a *app) controller(mode txn.Mode) *txn.Controller {
	return txn.NewController(a.bridge, a.manager, txn.Options{
		Mode:    mode,
		Logger:  a.logger,
		Metrics: a.metrics,
	})
}

// properties loads the purge properties from path, falling back to the
// configured file. No file yields an empty set, under which every purge
// is denied.
func (a *app) properties(path string) (*config.Properties, error) {
	if path == "" {
		path = a.cfg.Properties
	}
	if path == "" {
		return config.NewProperties(nil), nil
	}
	p, err := config.LoadProperties(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load properties", err)
	}
	return p, nil
}

// close reports metrics in verbose mode and closes the database.
func (a *app) close() {
	a.reportMetrics()
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

func (a *app) reportMetrics() {
	if !a.out.Verbose {
		return
	}
	families, err := a.registry.Gather()
	if err != nil {
		a.logger.Warn("gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			sort.Strings(labels)
			a.out.VerboseLog("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
		}
	}
}
