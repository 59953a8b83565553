package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/attachedclients/internal/config"
)

// seedCmd inserta datos de demo para un usuario: un client OAuth, un
// device emparejado, una sesión de browser y sus tokens. Pensado para
// desarrollo local contra una base con el esquema de migrations/postgres.
func seedCmd(configPath *string) *cobra.Command {
	var uid string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Inserta datos de demo (dev only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_ = godotenv.Load()

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			if uid == "" {
				uid = uuid.NewString()
			}
			if err := seedUser(ctx, pool, uid); err != nil {
				return err
			}
			fmt.Printf("seeded uid=%s\n", uid)
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "uid destino (default: uno nuevo)")
	return cmd
}

func seedUser(ctx context.Context, pool *pgxpool.Pool, uid string) error {
	now := time.Now().UTC()
	clientID := uuid.NewString()
	sessionTokenID := uuid.NewString()
	refreshTokenID := uuid.NewString()

	const qClient = `
		INSERT INTO oauth_clients (id, name, can_grant)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`
	if _, err := pool.Exec(ctx, qClient, clientID, "Demo Sync", false); err != nil {
		return err
	}

	const qSession = `
		INSERT INTO sessions
			(token_id, uid, created_at, last_access_at,
			 ua_browser, ua_browser_version, ua_os, ua_os_version, ua_form_factor, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := pool.Exec(ctx, qSession,
		sessionTokenID, uid, now.Add(-48*time.Hour), now.Add(-time.Hour),
		"Firefox", "121.0", "Linux", "", "",
		[]byte(`{"city":"Madrid","country":"Spain","countryCode":"ES"}`),
	); err != nil {
		return err
	}

	const qDevice = `
		INSERT INTO devices (id, uid, session_token_id, refresh_token_id, name, type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := pool.Exec(ctx, qDevice,
		uuid.NewString(), uid, sessionTokenID, refreshTokenID, "Demo Laptop", "desktop", now.Add(-48*time.Hour),
	); err != nil {
		return err
	}

	const qRefresh = `
		INSERT INTO refresh_tokens (token_id, uid, client_id, scope, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := pool.Exec(ctx, qRefresh,
		refreshTokenID, uid, clientID, []string{"profile", "openid"}, now.Add(-24*time.Hour), now.Add(-2*time.Hour),
	); err != nil {
		return err
	}

	const qAccess = `
		INSERT INTO access_tokens (token_id, uid, client_id, scope, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := pool.Exec(ctx, qAccess,
		uuid.NewString(), uid, clientID, []string{"profile"}, now.Add(-time.Hour), now.Add(time.Hour),
	); err != nil {
		return err
	}

	return nil
}
