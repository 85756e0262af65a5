// Package app wires configuration into a running session: the local snapshot
// store, the selected remote store, the owner scope and the reconciler.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"todosync/internal/backend/googletasks"
	"todosync/internal/backend/postgres"
	"todosync/internal/backend/supabase"
	"todosync/internal/config"
	"todosync/internal/localstore"
	"todosync/internal/logging"
	"todosync/internal/reconciler"
	"todosync/internal/service"
)

// Session is one process's view of the task list.
type Session struct {
	Tasks     *reconciler.Reconciler
	Observers *reconciler.Broadcast
	Logger    *log.Logger

	// Authenticated is true when requests run as a signed-in account.
	Authenticated bool

	// Initial is the result of the first load.
	Initial reconciler.LoadResult

	// DetachConsole stops notices from being printed to the terminal. Full
	// screen views call it before taking over the screen.
	DetachConsole func()

	closers []func() error
}

// PollInterval returns the refresh interval for this session.
func (s *Session) PollInterval(cfg *config.Config) time.Duration {
	return cfg.PollInterval(s.Authenticated)
}

// AddCloser registers fn to run on Close.
func (s *Session) AddCloser(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Close waits for in-flight writes (bounded by ctx) and releases stores.
func (s *Session) Close(ctx context.Context) error {
	var errs []error
	if s.Tasks != nil {
		if err := s.Tasks.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("waiting for pending writes: %w", err))
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Remote is the resolved remote store. Store is nil when none is configured.
type Remote struct {
	Store         service.RemoteStore
	Owner         string
	Authenticated bool
	Close         func() error
}

// Open builds a session from cfg and performs the initial load.
func Open(ctx context.Context, cfg *config.Config, obs *reconciler.Broadcast, logger *log.Logger) (*Session, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if obs == nil {
		obs = reconciler.NewBroadcast()
	}
	sess := &Session{Observers: obs, Logger: logger}

	local, closeLocal, err := OpenLocal(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sess.AddCloser(closeLocal)

	remote, err := OpenRemote(ctx, cfg)
	if err != nil {
		_ = sess.Close(ctx)
		return nil, err
	}
	if remote.Close != nil {
		sess.AddCloser(remote.Close)
	}
	sess.Authenticated = remote.Authenticated

	usable := remote.Store != nil && cfg.RemoteUsable()
	logger.Debug("opening session",
		"backend", cfg.Backend,
		"remote", usable,
		"owner", remote.Owner,
		"local", cfg.Local.Driver)

	sess.Tasks = reconciler.New(local,
		reconciler.WithRemote(remote.Store, usable),
		reconciler.WithOwner(remote.Owner),
		reconciler.WithObserver(obs),
		reconciler.WithLogger(logger),
	)
	sess.Initial = sess.Tasks.Start(ctx)
	return sess, nil
}

// OpenLocal opens the configured local snapshot store.
func OpenLocal(ctx context.Context, cfg *config.Config) (service.LocalStore, func() error, error) {
	if err := cfg.EnsureDir(); err != nil {
		return nil, nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	switch cfg.Local.Driver {
	case config.LocalDriverSQLite:
		store, err := localstore.OpenSQLite(ctx, cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store, err := localstore.NewFile(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	}
}

// OpenRemote builds the remote store for cfg.Backend without contacting it.
// An unconfigured backend yields a Remote with a nil Store.
func OpenRemote(ctx context.Context, cfg *config.Config) (Remote, error) {
	switch cfg.Backend {
	case config.BackendSupabase:
		return openSupabase(ctx, cfg)

	case config.BackendPostgres:
		if !cfg.RemoteUsable() {
			return Remote{}, nil
		}
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return Remote{}, fmt.Errorf("postgres: %w", err)
		}
		store := postgres.New(db, cfg.Postgres.Table)
		return Remote{
			Store:         store,
			Owner:         cfg.Postgres.Owner,
			Authenticated: cfg.Postgres.Owner != "",
			Close:         store.Close,
		}, nil

	case config.BackendGoogleTasks:
		if !cfg.RemoteUsable() {
			return Remote{}, nil
		}
		client, err := googletasks.New(ctx, cfg)
		if err != nil {
			return Remote{}, fmt.Errorf("auth error: %w", err)
		}
		return Remote{Store: client, Authenticated: true}, nil

	case config.BackendLocal:
		return Remote{}, nil

	default:
		return Remote{}, fmt.Errorf("%w: %s", config.ErrUnknownBackend, cfg.Backend)
	}
}

// SupabaseClient returns an anonymous client for the configured project.
func SupabaseClient(cfg *config.Config, opts ...supabase.Option) *supabase.Client {
	opts = append([]supabase.Option{supabase.WithTable(cfg.Supabase.Table)}, opts...)
	return supabase.New(cfg.Supabase.URL, cfg.Supabase.AnonKey, opts...)
}

func openSupabase(ctx context.Context, cfg *config.Config) (Remote, error) {
	if !cfg.SupabaseConfigured() {
		return Remote{}, nil
	}
	if !cfg.HasToken() {
		return Remote{Store: SupabaseClient(cfg)}, nil
	}

	token, err := cfg.LoadToken()
	if err != nil {
		return Remote{}, fmt.Errorf("auth error: %w", err)
	}
	owner, err := supabase.OwnerFromToken(token.AccessToken)
	if err != nil {
		return Remote{}, fmt.Errorf("auth error: %w (run: %s login)", err, config.AppName)
	}

	anon := SupabaseClient(cfg)
	tokens := supabase.PersistingTokenSource(anon.TokenSource(ctx, token), token, cfg.SaveToken)
	return Remote{
		Store:         SupabaseClient(cfg, supabase.WithTokenSource(tokens)),
		Owner:         owner,
		Authenticated: true,
	}, nil
}

// Owner returns the owner scope cfg resolves to, without opening stores.
func Owner(cfg *config.Config) (string, error) {
	switch cfg.Backend {
	case config.BackendSupabase:
		if !cfg.HasToken() {
			return "", nil
		}
		token, err := cfg.LoadToken()
		if err != nil {
			return "", err
		}
		return supabase.OwnerFromToken(token.AccessToken)
	case config.BackendPostgres:
		return cfg.Postgres.Owner, nil
	default:
		return "", nil
	}
}
