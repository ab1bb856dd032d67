package main

import (
	"context"
	"fmt"

	"array/internal/clone"
	"array/internal/config"
	"array/internal/dialog"
	"array/internal/logging"
	"array/internal/repository"
	"array/internal/store"
	"array/internal/workspace"
)

// app is one process's wiring of config, state database, clone
// orchestrator, and workspace store.
type app struct {
	cfg    *config.Config
	db     *store.Store
	creds  *repository.CredentialManager
	orch   *clone.Orchestrator
	ws     *workspace.Store
	logger *logging.AppLogger

	unsubscribe func()
}

// openApp wires everything and restores the persisted selection. The
// caller must call close.
func openApp(ctx context.Context, cfg *config.Config, d dialog.Dialog, logger *logging.AppLogger) (*app, error) {
	db, err := store.New(cfg.ResolvedStatePath())
	if err != nil {
		return nil, err
	}

	creds := repository.NewCredentialManager()
	orch := clone.NewOrchestrator(cloneOptions(cfg, creds, logger))
	unsubscribe := orch.Subscribe(func(ev clone.ProgressEvent) {
		if err := db.RecordClone(context.Background(), ev); err != nil {
			logger.Warn("Failed to record clone", "operation", ev.OperationID, "error", err)
		}
	})

	ws := workspace.NewStore(workspace.Options{
		WorkspaceRoot: func() string { return cfg.WorkspaceRoot },
		Cloner:        orch,
		Dialog:        d,
		Persistence:   store.NewSelectionStore(db),
		PollInterval:  cfg.PollInterval(),
		Logger:        logger,
	})

	a := &app{
		cfg:         cfg,
		db:          db,
		creds:       creds,
		orch:        orch,
		ws:          ws,
		logger:      logger,
		unsubscribe: unsubscribe,
	}
	if err := ws.Load(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	a.unsubscribe()
	if err := a.db.Close(); err != nil {
		a.logger.Warn("Failed to close state database", "error", err)
	}
}

// cloneOptions picks the clone backend. "exec" runs git over SSH and probes
// with ssh; "go-git" clones over HTTPS, anonymously or with the keyring token.
func cloneOptions(cfg *config.Config, creds *repository.CredentialManager, logger *logging.AppLogger) clone.Options {
	host := cfg.Host()
	opts := clone.Options{
		MaxOutputBytes: cfg.Clone.MaxOutputBytes,
		Logger:         logger,
	}

	switch cfg.Clone.Backend {
	case config.BackendGoGit:
		opts.Prober = clone.HTTPSProber{Host: host, Tokens: creds, Timeout: cfg.ProbeTimeout()}
		opts.Cloner = clone.GoGitCloner{Tokens: creds, Logger: logger}
		opts.RemoteURL = func(id repository.Identifier) string { return id.HTTPSURL(host) }
	default:
		opts.Prober = clone.SSHProber{Host: host, User: cfg.Remote.User, Timeout: cfg.ProbeTimeout()}
		opts.Cloner = clone.ExecCloner{}
		opts.RemoteURL = func(id repository.Identifier) string { return id.RemoteURL(host) }
	}
	return opts
}

// waitSettled blocks until the store is no longer syncing or ctx ends.
func waitSettled(ctx context.Context, ws *workspace.Store) (workspace.State, error) {
	settled := make(chan struct{}, 1)
	unsubscribe := ws.Subscribe(func(st workspace.State) {
		if !st.IsSyncing {
			select {
			case settled <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	if st := ws.State(); !st.IsSyncing {
		return st, nil
	}
	select {
	case <-settled:
		return ws.State(), nil
	case <-ctx.Done():
		return ws.State(), fmt.Errorf("stopped waiting for clone: %w", ctx.Err())
	}
}
