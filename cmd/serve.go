package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bottlecrm/authd/internal/agentplatform"
	"github.com/bottlecrm/authd/internal/api"
	"github.com/bottlecrm/authd/internal/audit"
	"github.com/bottlecrm/authd/internal/auth"
	"github.com/bottlecrm/authd/internal/config"
	"github.com/bottlecrm/authd/internal/core"
	"github.com/bottlecrm/authd/internal/idp"
	"github.com/bottlecrm/authd/internal/service"
	"github.com/bottlecrm/authd/internal/store"
)

var cfgFile string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the authd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if addr == "" {
			addr = cfg.Server.Addr
		}

		log.Info().Str("type", cfg.Store.Type).Msg("Initializing store...")
		var (
			st      core.Store
			cleanup func()
		)
		switch cfg.Store.Type {
		case "postgres":
			pg, err := store.NewPostgres(cmd.Context(), cfg.Store.DSN)
			if err != nil {
				return fmt.Errorf("connecting to postgres: %w", err)
			}
			st, cleanup = pg, pg.Close
		default:
			st = store.NewMemory()
		}
		if cleanup != nil {
			defer cleanup()
		}

		issuer, err := auth.NewIssuer([]byte(cfg.Auth.SigningKey))
		if err != nil {
			return fmt.Errorf("building token issuer: %w", err)
		}

		gate, err := auth.NewGate(cfg.Auth.ElevatedExpr)
		if err != nil {
			return fmt.Errorf("building authorization gate: %w", err)
		}

		var verifier idp.Verifier
		if cfg.Auth.FederatedProvider != "" {
			log.Info().Msg("Initializing identity providers...")
			registry, err := idp.BuildRegistry(cmd.Context(), cfg.IdentityProviders)
			if err != nil {
				return fmt.Errorf("building identity provider registry: %w", err)
			}
			verifier = registry[cfg.Auth.FederatedProvider]
		}

		var (
			exchanger      agentplatform.Exchanger
			agentValidator *auth.AgentSessionValidator
		)
		if cfg.Agent.Enabled {
			log.Info().Msg("Initializing agent platform client...")
			client, err := agentplatform.NewClient(agentplatform.Config{
				ClientID:     cfg.Agent.Platform.ClientID,
				ClientSecret: cfg.Agent.Platform.ClientSecret,
				RedirectURI:  cfg.Agent.Platform.RedirectURI,
				TokenURL:     cfg.Agent.Platform.TokenURL,
				UserInfoURL:  cfg.Agent.Platform.UserInfoURL,
				Timeout:      cfg.Agent.Platform.Timeout,
			})
			if err != nil {
				return fmt.Errorf("building agent platform client: %w", err)
			}
			exchanger = client
			agentValidator = auth.NewAgentSessionValidator(st, st, cfg.Agent.APISecret)
		}

		auditor, err := audit.FromConfig(cfg.Audit)
		if err != nil {
			return fmt.Errorf("building auditor: %w", err)
		}
		defer func() {
			if err := auditor.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close auditor")
			}
		}()

		credValidator := auth.NewCredentialValidator(issuer, st, st)

		var sessionValidator auth.SessionValidator
		if agentValidator != nil {
			sessionValidator = agentValidator
		}
		dispatcher := auth.NewDispatcher(credValidator, sessionValidator)

		svc := service.NewAuthService(issuer, st, verifier, exchanger, auditor,
			cfg.Auth.TokenTTL, cfg.Agent.SessionTTL)

		srv := api.NewServer(svc, dispatcher, gate, agentValidator,
			cfg.Agent.APIKeyHeader, cfg.Agent.Enabled)

		server := &http.Server{
			Addr:    addr,
			Handler: srv.Routes(),
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "address to listen on (overrides config)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "authd.yaml", "Path to the server configuration file")
}
