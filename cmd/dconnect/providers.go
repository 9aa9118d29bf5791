package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"go.uber.org/fx"

	"github.com/dconnect/courier/internal/api"
	"github.com/dconnect/courier/internal/app"
	"github.com/dconnect/courier/internal/auth"
	"github.com/dconnect/courier/internal/credential"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/notify"
	"github.com/dconnect/courier/internal/session"
	"github.com/dconnect/courier/internal/store"
	"github.com/dconnect/courier/internal/validate"
)

func injectInfra() fx.Option {
	return fx.Provide(
		newConfig,
		newLogger,
		newSession,
		newStore,
	)
}

func injectServices() fx.Option {
	return fx.Provide(
		newClient,
		newSynchronizer,
		newChannel,
		validate.New,
		newAuth,
	)
}

// newConfig layers flags over environment over the config file.
func newConfig(opts options) (*model.AppConfig, error) {
	v := model.NewViper()

	bindings := map[string]string{
		"api.base_url": "api",
		"push.url":     "ws",
		"log.level":    "log-level",
	}
	for key, flag := range bindings {
		if f := opts.Flags.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "binding --%s", flag)
			}
		}
	}

	return model.LoadConfig(v, opts.ConfigPath)
}

// newLogger writes to the configured log file; the terminal belongs to
// the UI.
func newLogger(lc fx.Lifecycle, cfg *model.AppConfig) (*slog.Logger, error) {
	level, err := parseLogLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating log directory")
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "opening log file")
	}
	lc.Append(fx.StopHook(f.Close))

	handlerOpts := &slog.HandlerOptions{Level: level}
	var logger *slog.Logger
	if cfg.Log.JSON {
		logger = slog.New(slog.NewJSONHandler(f, handlerOpts))
	} else {
		logger = slog.New(slog.NewTextHandler(f, handlerOpts))
	}
	slog.SetDefault(logger)
	return logger, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Errorf("unknown log level: %s", level)
	}
}

// newSession opens the credential store and restores any saved session.
// A restore failure starts logged out rather than aborting.
func newSession(logger *slog.Logger) (*session.Store, error) {
	ring, err := credential.Open(model.ConfigDir())
	if err != nil {
		return nil, err
	}

	sess := session.New(ring, logger)
	if ok, err := sess.Restore(); err != nil {
		logger.Warn("restoring session", slog.Any("error", err))
	} else if ok {
		logger.Info("restored session")
	}
	return sess, nil
}

func newStore(lc fx.Lifecycle, cfg *model.AppConfig) (*store.SQLiteStore, error) {
	path := cfg.Locations.DBPath
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "creating locations directory")
		}
	}

	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(s.Close))
	return s, nil
}

func newClient(cfg *model.AppConfig, sess *session.Store, logger *slog.Logger) *api.Client {
	return api.NewClient(cfg.API.BaseURL, sess,
		api.WithTimeout(cfg.API.Timeout()),
		api.WithLogger(logger),
	)
}

func newSynchronizer(c *api.Client, logger *slog.Logger) *notify.Synchronizer {
	return notify.New(c, logger)
}

func newChannel(cfg *model.AppConfig, logger *slog.Logger) *notify.Channel {
	return notify.NewChannel(cfg.Push.URL, cfg.Push.MaxBackoff(), logger)
}

func newAuth(c *api.Client, sess *session.Store, v *validate.Validator, logger *slog.Logger) *auth.Service {
	return auth.NewService(c, sess, v, logger)
}

type programParams struct {
	fx.In

	Options   options
	Config    *model.AppConfig
	Logger    *slog.Logger
	Session   *session.Store
	Client    *api.Client
	Auth      *auth.Service
	Places    *store.SQLiteStore
	Sync      *notify.Synchronizer
	Channel   *notify.Channel
	Validator *validate.Validator
}

func newProgram(p programParams) *tea.Program {
	root := app.New(app.Deps{
		Config:     p.Config,
		ConfigPath: p.Options.ConfigPath,
		Logger:     p.Logger,
		Session:    p.Session,
		Client:     p.Client,
		Auth:       p.Auth,
		Places:     p.Places,
		Sync:       p.Sync,
		Channel:    p.Channel,
		Validator:  p.Validator,
	})
	return tea.NewProgram(root, tea.WithAltScreen())
}

// locationImporter loads a catalogue file into the local store.
type locationImporter struct {
	store  *store.SQLiteStore
	logger *slog.Logger
}

func newLocationImporter(s *store.SQLiteStore, logger *slog.Logger) *locationImporter {
	return &locationImporter{store: s, logger: logger}
}

// Import reads the JSON catalogue at path.
func (li *locationImporter) Import(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening catalogue")
	}
	defer f.Close()

	n, err := li.store.ImportJSON(ctx, f)
	if err != nil {
		return err
	}
	li.logger.Info("imported location catalogue", "path", path, "countries", n)
	fmt.Printf("Imported %d countries from %s\n", n, path)
	return nil
}
