package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/franciscosanchezn/signflow-api/internal/middleware"
	"github.com/franciscosanchezn/signflow-api/internal/tokens"
)

func newServeCommand() *cobra.Command {
	var maintenanceInterval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := newApplication(conf)
			if err != nil {
				return err
			}
			defer app.Close()
			if conf.DocuSign.WebhookSecret == "" {
				log.Warn("DOCUSIGN_WEBHOOK_SECRET not set, Connect notifications are accepted unsigned")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			retention := time.Duration(conf.DocuSign.RetentionDays) * 24 * time.Hour
			go tokens.NewMaintainer(app.manager, maintenanceInterval, retention).Run(ctx)

			server := &http.Server{
				Addr:              fmt.Sprintf("%v:%d", conf.Host, conf.Port),
				Handler:           setupRouter(app),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Infof("Starting server on %s:%d", conf.Host, conf.Port)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().DurationVar(&maintenanceInterval, "maintenance-interval", time.Minute, "How often to refresh due tokens and purge old records")
	return cmd
}

func newTokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Inspect and manage stored DocuSign tokens",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the active DocuSign authorization",
		RunE: withApplication(func(ctx context.Context, app *application, cmd *cobra.Command) error {
			status, err := app.manager.GetAuthStatus(ctx)
			if err != nil {
				return err
			}
			if !status.Authenticated {
				fmt.Fprintf(cmd.ErrOrStderr(), "not authorized; visit %s\n", app.authURL())
			}
			return printJSON(cmd, status)
		}),
	}

	var retentionDays int
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete deactivated token records older than the retention period",
		RunE: withApplication(func(ctx context.Context, app *application, cmd *cobra.Command) error {
			days := retentionDays
			if days <= 0 {
				days = app.cfg.DocuSign.RetentionDays
			}
			n, err := app.manager.Sweep(ctx, time.Duration(days)*24*time.Hour)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"purged": n, "retentionDays": days})
		}),
	}
	sweepCmd.Flags().IntVar(&retentionDays, "retention-days", 0, "Override TOKEN_RETENTION_DAYS")

	var reason string
	revokeCmd := &cobra.Command{
		Use:   "revoke",
		Short: "Deactivate every active DocuSign token",
		RunE: withApplication(func(ctx context.Context, app *application, cmd *cobra.Command) error {
			n, err := app.manager.RevokeAll(ctx, reason)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"revoked": n, "authUrl": app.authURL()})
		}),
	}
	revokeCmd.Flags().StringVar(&reason, "reason", "revoked from CLI", "Reason recorded in the token notes")

	cmd.AddCommand(statusCmd, sweepCmd, revokeCmd)
	return cmd
}

func newOperatorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Operator API credentials",
	}

	var subject, role string
	var ttl time.Duration
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the operator API",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := middleware.IssueOperatorToken([]byte(conf.JWTSecret), subject, role, ttl, time.Now())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"access_token": token,
				"token_type":   "Bearer",
				"expires_in":   int(ttl.Seconds()),
				"role":         role,
			})
		},
	}
	tokenCmd.Flags().StringVar(&subject, "subject", "", "Operator identifier, e.g. an email address")
	tokenCmd.Flags().StringVar(&role, "role", middleware.RoleOperator, "Role: admin or operator")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")

	cmd.AddCommand(tokenCmd)
	return cmd
}

// withApplication loads config, wires the application and closes it after run
func withApplication(run func(ctx context.Context, app *application, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}
		app, err := newApplication(conf)
		if err != nil {
			return err
		}
		defer app.Close()
		return run(cmd.Context(), app, cmd)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
