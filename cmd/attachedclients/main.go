package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/attachedclients/internal/cache"
	"github.com/dropDatabas3/attachedclients/internal/config"
	"github.com/dropDatabas3/attachedclients/internal/connected"
	"github.com/dropDatabas3/attachedclients/internal/domain/repository"
	"github.com/dropDatabas3/attachedclients/internal/metrics"
	"github.com/dropDatabas3/attachedclients/internal/observability/logger"
	"github.com/dropDatabas3/attachedclients/internal/store/pg"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "attachedclients",
		Short: "Agregador de attached clients (sesiones, devices y apps OAuth)",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "ruta del config YAML")

	root.AddCommand(
		serveCmd(&configPath),
		listCmd(&configPath),
		authorizedCmd(&configPath),
		revokeCmd(&configPath),
		pruneCmd(&configPath),
		seedCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// deps son las dependencias armadas que comparten todos los subcomandos.
type deps struct {
	cfg   *config.Config
	store *pg.Store
	cache *cache.Cache
	svc   *connected.Service
}

func (d *deps) close() {
	if d.cache != nil {
		_ = d.cache.Close()
	}
	if d.store != nil {
		d.store.Close()
	}
	_ = logger.Sync()
}

func build(ctx context.Context, configPath string) (*deps, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "attachedclients",
	})

	if err := metrics.Register(nil); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	st, err := pg.New(ctx, cfg.Storage.DSN, pg.Tuning{
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	var conn cache.Conn
	switch cfg.Cache.Kind {
	case "redis":
		conn = cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			DB:       cfg.Cache.Redis.DB,
			Password: cfg.Cache.Redis.Password,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
	default:
		conn = cache.NewMemory()
	}
	tc := cache.New(conn, cache.Config{
		Timeout:           config.Dur(cfg.Cache.Timeout),
		RecordLimit:       cfg.Cache.RecordLimit,
		MaxTTL:            config.Dur(cfg.Cache.MaxTTL),
		MinTTL:            config.Dur(cfg.Cache.MinTTL),
		MaxPending:        cfg.Cache.MaxPending,
		MaxConnectRetries: cfg.Cache.MaxConnectRetries,
		InitialBackoff:    config.Dur(cfg.Cache.InitialBackoff),
	})
	if err := tc.Connect(ctx); err != nil {
		// El cache deshabilitado no impide operar: degradamos a
		// store-durable-only.
		logger.Named("main").Warn("token cache disabled at startup", logger.Err(err))
	}

	formatter := connected.NewFormatter(
		cfg.Clients.SupportedLanguages,
		cfg.Clients.DefaultLanguage,
		cfg.Clients.EarliestSaneAccessTime,
	)
	svc := connected.NewService(st, tc, formatter)

	return &deps{cfg: cfg, store: st, cache: tc, svc: svc}, nil
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el server de ops (healthz/readyz/metrics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := build(ctx, *configPath)
			if err != nil {
				return err
			}
			defer d.close()

			r := chi.NewRouter()
			r.Use(middleware.Recoverer)
			r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})
			r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
				if err := d.store.Ping(req.Context()); err != nil {
					http.Error(w, "store unavailable", http.StatusServiceUnavailable)
					return
				}
				// El cache degradado no bloquea readiness; solo informa.
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]string{
					"status": "ok",
					"cache":  d.cache.State().String(),
				})
			})
			r.Handle("/metrics", promhttp.Handler())

			srv := &http.Server{
				Addr:              d.cfg.Server.Addr,
				Handler:           r,
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			logger.S().Infow("ops server listening", "addr", d.cfg.Server.Addr)

			// Un cache Disabled solo se recupera con un Connect explícito:
			// reintentamos periódicamente mientras el proceso viva.
			go func() {
				t := time.NewTicker(time.Minute)
				defer t.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-t.C:
						if d.cache.State() == cache.StateDisabled {
							_ = d.cache.Connect(ctx)
						}
					}
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func listCmd(configPath *string) *cobra.Command {
	var sessionTokenID, lang string
	cmd := &cobra.Command{
		Use:   "list <uid>",
		Short: "Lista los attached clients de un usuario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := build(ctx, *configPath)
			if err != nil {
				return err
			}
			defer d.close()

			clients, err := d.svc.List(ctx, args[0], sessionTokenID, lang)
			if err != nil {
				return err
			}
			return printJSON(clients)
		},
	}
	cmd.Flags().StringVar(&sessionTokenID, "session", "", "session token id del caller (marca isCurrentSession)")
	cmd.Flags().StringVar(&lang, "lang", "", "header Accept-Language para formateo")
	return cmd
}

func authorizedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "authorized <uid>",
		Short: "Lista los clients OAuth autorizados de un usuario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := build(ctx, *configPath)
			if err != nil {
				return err
			}
			defer d.close()

			clients, err := d.svc.ListAuthorizedClients(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(clients)
		},
	}
}

func revokeCmd(configPath *string) *cobra.Command {
	var deviceID, sessionTokenID, refreshTokenID, clientID string
	cmd := &cobra.Command{
		Use:   "revoke <uid>",
		Short: "Revoca un attached client por device/session/refresh token id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := build(ctx, *configPath)
			if err != nil {
				return err
			}
			defer d.close()

			err = d.svc.Revoke(ctx, args[0], connected.RevocationSelector{
				DeviceID:       deviceID,
				SessionTokenID: sessionTokenID,
				RefreshTokenID: refreshTokenID,
				ClientID:       clientID,
			})
			switch {
			case err == nil:
				fmt.Println("revoked")
				return nil
			case repository.IsNotFound(err):
				fmt.Println("not found")
				return nil
			default:
				return err
			}
		},
	}
	cmd.Flags().StringVar(&deviceID, "device", "", "device id")
	cmd.Flags().StringVar(&sessionTokenID, "session", "", "session token id")
	cmd.Flags().StringVar(&refreshTokenID, "refresh", "", "refresh token id")
	cmd.Flags().StringVar(&clientID, "client", "", "client id (fan-out de access tokens)")
	return cmd
}

func pruneCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prune <uid>",
		Short: "Poda entradas de cache sin fila durable para un usuario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := build(ctx, *configPath)
			if err != nil {
				return err
			}
			defer d.close()
			uid := args[0]

			sessions, err := d.store.FindSessionsByUID(ctx, uid)
			if err != nil {
				return err
			}
			refresh, err := d.store.FindRefreshTokensByUID(ctx, uid)
			if err != nil {
				return err
			}
			access, err := d.store.FindAccessTokensByUID(ctx, uid)
			if err != nil {
				return err
			}

			sessionIDs := make([]string, 0, len(sessions))
			for _, s := range sessions {
				sessionIDs = append(sessionIDs, s.ID)
			}
			refreshIDs := make([]string, 0, len(refresh))
			for _, t := range refresh {
				refreshIDs = append(refreshIDs, t.ID)
			}
			accessIDs := make([]string, 0, len(access))
			for _, t := range access {
				accessIDs = append(accessIDs, t.ID)
			}

			total := d.cache.PruneStale(ctx, repository.ScopeSessionTokens, uid, sessionIDs)
			total += d.cache.PruneStale(ctx, repository.ScopeRefreshTokens, uid, refreshIDs)
			total += d.cache.PruneStale(ctx, repository.ScopeAccessTokens, uid, accessIDs)
			fmt.Printf("pruned %d entries\n", total)
			return nil
		},
	}
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
