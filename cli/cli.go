// Package cli holds the blogicum command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"blogicum/app"
	"blogicum/config"
	"blogicum/database"
	"blogicum/seed"
)

// version is set at build time via -ldflags "-X blogicum/cli.version=x.y.z".
var version = "dev"

const shutdownTimeout = 10 * time.Second

func Execute() error {
	return NewRootCommand().Execute()
}

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "blogicum",
		Short:        "Blogicum blog server",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newSeedCommand())
	return root
}

// open loads configuration and returns a migrated database.
func open() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.RunMigrations(db); err != nil {
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return cfg, db, nil
}

func newServeCommand() *cobra.Command {
	var sweepEvery time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := open()
			if err != nil {
				return err
			}
			application, err := app.New(cfg, db)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go application.SweepCache(ctx, sweepEvery)

			return serve(ctx, &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           application.Router,
				ReadHeaderTimeout: 10 * time.Second,
			})
		},
	}
	cmd.Flags().DurationVar(&sweepEvery, "cache-sweep", 5*time.Minute, "How often expired cached pages are removed (0 disables)")
	return cmd
}

// serve runs srv until ctx is cancelled and then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s...", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := open(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	opts := seed.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with fake users, posts and comments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := open()
			if err != nil {
				return err
			}
			summary, err := seed.Run(cmd.Context(), db, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", summary)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.Users, "users", opts.Users, "Number of users")
	f.IntVar(&opts.Categories, "categories", opts.Categories, "Number of categories")
	f.IntVar(&opts.Locations, "locations", opts.Locations, "Number of locations")
	f.IntVar(&opts.PostsPerUser, "posts", opts.PostsPerUser, "Posts per user")
	f.IntVar(&opts.CommentsPerPost, "comments", opts.CommentsPerPost, "Comments per post")
	f.StringVar(&opts.Password, "password", opts.Password, "Password shared by every seeded user")
	f.Int64Var(&opts.Seed, "seed", 0, "Random seed for repeatable data (0 picks one)")
	return cmd
}
