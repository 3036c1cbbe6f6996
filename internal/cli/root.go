package cli

import (
	"fmt"
	"os"

	"github.com/hypernova-labs/dgi-console/internal/agent"
	"github.com/hypernova-labs/dgi-console/internal/backend"
	"github.com/hypernova-labs/dgi-console/internal/config"
	"github.com/hypernova-labs/dgi-console/internal/models"
	"github.com/hypernova-labs/dgi-console/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagRole    string
	flagKind    string
	flagBackend string
)

var rootCmd = &cobra.Command{
	Use:   "dgi-console",
	Short: "Console for fiscal documents under DGI clearance",
	Long: `dgi-console manages invoices and credit notes through their full
lifecycle: drafting, signing through the local agent, submission to the
tax authority and clearance follow-up.

The operator role and document kind select which operations are
available; permissions are enforced locally before any call leaves the
machine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		note := models.Notify(err)
		fmt.Fprintln(os.Stderr, "Error:", note.Title)
		for _, item := range note.Items {
			fmt.Fprintln(os.Stderr, "  -", item)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRole, "role", "", "Operator role: admin, manager or clerk")
	rootCmd.PersistentFlags().StringVar(&flagKind, "kind", "", "Document kind: invoice or credit_note")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "Backend base URL")
}

// bootstrap loads configuration, applies flag overrides and opens a session.
func bootstrap() (*session.Session, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	if flagRole != "" {
		cfg.Session.Role = flagRole
	}
	if flagKind != "" {
		cfg.Session.Kind = flagKind
	}
	if flagBackend != "" {
		cfg.Backend.BaseURL = flagBackend
	}

	role, err := models.ParseRole(cfg.Session.Role)
	if err != nil {
		return nil, nil, err
	}
	kind, err := models.ParseKind(cfg.Session.Kind)
	if err != nil {
		return nil, nil, err
	}

	logger := newLogger(cfg)
	be := backend.NewClient(cfg.Backend, role, logger)
	ag := agent.NewClient(cfg.Agent, logger)
	sess := session.New(role, kind, be, ag, logger, session.WithCulture(cfg.Agent.Culture))
	return sess, cfg, nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
