package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"task-api/internal/config"
	"task-api/internal/store"
	"task-api/internal/task"
	"task-api/pkg/mq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOpts struct {
	v          *viper.Viper
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	o := &rootOpts{v: config.New()}
	cmd := &cobra.Command{
		Use:          "tasks",
		Short:        "Task API server and client",
		SilenceUsage: true,
	}
	f := cmd.PersistentFlags()
	f.StringVar(&o.configFile, "config", "", "config file (yaml, json or toml)")
	f.StringVar(&o.envFile, "env-file", ".env", "dotenv file, ignored if missing")
	f.String("store-driver", "sqlite", "sqlite|mysql|postgres|memory")
	f.String("store-dsn", "", "store DSN (driver specific)")
	f.String("log-level", "info", "debug|info|warn|error")
	f.String("log-format", "text", "text|json")
	_ = o.v.BindPFlag("store.driver", f.Lookup("store-driver"))
	_ = o.v.BindPFlag("store.dsn", f.Lookup("store-dsn"))
	_ = o.v.BindPFlag("log.level", f.Lookup("log-level"))
	_ = o.v.BindPFlag("log.format", f.Lookup("log-format"))

	cmd.AddCommand(newServeCmd(o), newTasksCmd(o), newExportCmd(o))
	return cmd
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg   config.Config
	log   *slog.Logger
	repo  task.Repository
	bus   *mq.Bus
	tasks *task.Manager
}

func (o *rootOpts) open(ctx context.Context) (*app, error) {
	cfg, err := config.Load(o.v, o.configFile, o.envFile)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger(os.Stderr)
	repo, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	bus := mq.NewBus()
	mgr := task.NewManager(repo,
		task.WithPublisher(bus),
		task.WithListCache(cfg.Cache.ListTTL),
		task.WithMaxTitleLen(cfg.Task.MaxTitleLen),
		task.WithLogger(log),
	)
	log.Debug("store opened", "driver", cfg.Store.Driver)
	return &app{cfg: cfg, log: log, repo: repo, bus: bus, tasks: mgr}, nil
}

func (a *app) Close() error { return a.repo.Close() }
