// Command storygraph serves the film pipeline graph over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"

	"github.com/meikuraledutech/storygraph"
	"github.com/meikuraledutech/storygraph/backend"
	"github.com/meikuraledutech/storygraph/config"
	"github.com/meikuraledutech/storygraph/filestore"
	"github.com/meikuraledutech/storygraph/log"
	"github.com/meikuraledutech/storygraph/media"
	"github.com/meikuraledutech/storygraph/postgres"
	"github.com/meikuraledutech/storygraph/server"
)

// options holds the flags shared by every subcommand.
type options struct {
	configPath string
	project    string
}

func (o *options) addFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.configPath, "config", "", "Path of the TOML configuration file")
	cmd.PersistentFlags().StringVar(&o.project, "project", "", "Project to open (overrides store.project)")
}

func (o *options) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.project != "" {
		cfg.Store.Project = o.project
	}
	log.SetLevel(cfg.Log.Level)
	return cfg, nil
}

func main() {
	o := &options{}
	root := &cobra.Command{
		Use:           "storygraph",
		Short:         "Film pipeline graph server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.serve(cmd.Context())
		},
	}
	o.addFlags(root)
	root.AddCommand(newServeCommand(o), newMigrateCommand(o), newExportCommand(o), newDropProjectCommand(o))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		log.Fatalf("storygraph: %v", err)
	}
}

func newServeCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.serve(cmd.Context())
		},
	}
}

func newMigrateCommand(o *options) *cobra.Command {
	var drop bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the postgres schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate needs the %s driver, configured driver is %s", config.DriverPostgres, cfg.Store.Driver)
			}
			pool, err := postgres.Connect(cmd.Context(), cfg.Store.DSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			var m storygraph.Migrator = postgres.New(pool)
			if drop {
				if err := m.DropSchema(cmd.Context()); err != nil {
					return err
				}
				log.Info("schema dropped")
			}
			if err := m.CreateSchema(cmd.Context()); err != nil {
				return err
			}
			log.Info("schema created")
			return nil
		},
	}
	cmd.Flags().BoolVar(&drop, "drop", false, "Drop existing tables first")
	return cmd
}

func newExportCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the project as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			p, err := store.Load(cmd.Context(), cfg.Store.Project)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
}

func newDropProjectCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "drop-project",
		Short: "Delete the project with its nodes and edges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			d, ok := store.(storygraph.Deleter)
			if !ok {
				return fmt.Errorf("store driver %s cannot delete projects", cfg.Store.Driver)
			}
			if err := d.Delete(cmd.Context(), cfg.Store.Project); err != nil {
				return err
			}
			log.Infof("project %s dropped", cfg.Store.Project)
			return nil
		},
	}
}

func (o *options) serve(ctx context.Context) error {
	cfg, err := o.load()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	files, err := media.New(cfg.Media.Dir)
	if err != nil {
		return err
	}
	session, err := storygraph.Open(ctx, store, cfg.Store.Project,
		storygraph.WithGenerator(backend.New(files)),
		storygraph.WithDocReader(files),
		storygraph.WithDefaults(cfg.GenerationDefaults()),
	)
	if err != nil {
		return err
	}

	pool, err := ants.NewPool(cfg.Worker.PoolSize)
	if err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}
	defer pool.Release()

	srv := server.New(session, files, pool)
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(); err != nil {
			log.Warnf("shutdown: %v", err)
		}
	}()
	if err := srv.Listen(cfg.Server.Addr); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("storygraph exits")
	return nil
}

// openStore returns the configured project store and a func releasing it.
func openStore(ctx context.Context, cfg *config.Config) (storygraph.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(pool), pool.Close, nil
	default:
		fs, err := filestore.New(cfg.Store.Dir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}
}
