package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/todoweb/internal/account"
	"github.com/nhle/todoweb/internal/credential"
	"github.com/nhle/todoweb/internal/janitor"
	"github.com/nhle/todoweb/internal/metrics"
	"github.com/nhle/todoweb/internal/model"
	"github.com/nhle/todoweb/internal/session"
	"github.com/nhle/todoweb/internal/store"
	"github.com/nhle/todoweb/internal/todo"
	"github.com/nhle/todoweb/internal/web"
)

const shutdownTimeout = 10 * time.Second

var (
	rootCmd = &cobra.Command{
		Use:          "todoweb",
		Short:        "A multi-user to-do list web server",
		SilenceUsage: true,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long:  `Opens the database, applies migrations and serves the to-do application until interrupted.`,
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	configPath string
	listenAddr string
	dbPath     string

	secretCmd = &cobra.Command{
		Use:   "secret",
		Short: "Manage the session signing secret",
	}
	secretSetCmd = &cobra.Command{
		Use:   "set [value]",
		Short: "Store the session secret in the system keyring",
		Long:  `Stores the given value, or a freshly generated one, as the cookie signing secret.`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSecretSet,
	}
	secretDeleteCmd = &cobra.Command{
		Use:   "delete",
		Short: "Remove the session secret from the system keyring",
		Args:  cobra.NoArgs,
		RunE:  runSecretDelete,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "path to the config file")

	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address, overrides server.addr")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "database path, overrides database.path")

	secretCmd.AddCommand(secretSetCmd, secretDeleteCmd)
	rootCmd.AddCommand(serveCmd, secretCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.Addr = listenAddr
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	secret, err := credential.SessionSecret(cfg.Session.Secret)
	if err != nil {
		return err
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	logger := slog.Default()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := metrics.New(reg)
	hasher := credential.NewHasher(cfg.Auth.BcryptCost)
	sessions := session.NewManager(s, hasher, secret, logger)
	sweeper := janitor.New(s, m, logger,
		time.Duration(cfg.Session.IdleTTLHours)*time.Hour,
		time.Duration(cfg.Session.SweepIntervalMin)*time.Minute,
	)
	srv := web.NewServer(web.Deps{
		Store:    s,
		Todos:    todo.NewService(s, logger),
		Accounts: account.NewService(s, hasher, sessions, logger),
		Sessions: sessions,
		Metrics:  m,
		Gatherer: reg,
		Sweeps:   sweeper,
		Logger:   logger,
		Session:  cfg.Session,
		Auth:     cfg.Auth,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sweeper.Run(gCtx)
	})
	g.Go(func() error {
		slog.Info("Starting todoweb", "addr", cfg.Server.Addr, "database", cfg.Database.Path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("Shutting down todoweb")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	value := ""
	if len(args) == 1 {
		value = args[0]
	} else {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("generating secret: %w", err)
		}
		value = base64.RawURLEncoding.EncodeToString(buf)
	}
	if err := credential.Set(credential.SessionSecretKey, value); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Session secret stored in the system keyring.")
	return nil
}

func runSecretDelete(cmd *cobra.Command, _ []string) error {
	if err := credential.Delete(credential.SessionSecretKey); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Session secret removed; existing cookies stop validating on restart.")
	return nil
}
