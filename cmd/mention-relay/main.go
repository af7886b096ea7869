package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/mention-relay/internal/config"
	"github.com/mattjoyce/mention-relay/internal/generator"
	"github.com/mattjoyce/mention-relay/internal/log"
	"github.com/mattjoyce/mention-relay/internal/relay"
	"github.com/mattjoyce/mention-relay/internal/responder"
	"github.com/mattjoyce/mention-relay/internal/webhook"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "mention-relay",
		Short:        "Answer Slack mentions with a Vertex AI model",
		Long:         "mention-relay receives Slack Events API deliveries, verifies them and replies to app mentions in-thread.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (optional; environment variables are always read)")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(configCmd(&configPath))
	root.AddCommand(signCmd())
	root.AddCommand(versionCmd())
	return root
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the events endpoint in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("mention-relay starting",
		"version", version,
		"model", cfg.Generator.Model,
		"signing_secret", config.Fingerprint(cfg.Slack.SigningSecret),
	)

	gen, err := generator.NewVertex(ctx, generator.VertexConfig{
		Project:  cfg.Generator.Project,
		Location: cfg.Generator.Location,
		Model:    cfg.Generator.Model,
		Logger:   log.WithComponent("generator"),
	})
	if err != nil {
		logger.Error("failed to initialize generator", "error", err)
		return err
	}

	resp := responder.NewSlack(responder.SlackConfig{
		BotToken:         cfg.Slack.BotToken,
		APIURL:           cfg.Slack.APIURL,
		MaxMessageLength: cfg.Slack.MaxMessageLength,
		Logger:           log.WithComponent("responder"),
	})

	r := relay.New(gen, resp, relay.Config{
		GenerateTimeout: cfg.Generator.Timeout,
		DeliverTimeout:  cfg.Slack.PostTimeout,
	}, log.WithComponent("relay"))

	whCfg, err := webhook.FromGlobalConfig(cfg)
	if err != nil {
		logger.Error("invalid webhook configuration", "error", err)
		return err
	}

	server := webhook.New(whCfg, r, log.WithComponent("webhook"))
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("webhook server stopped", "error", err)
		return err
	}

	logger.Info("mention-relay stopped")
	return nil
}

func configCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate configuration and print credential fingerprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			printConfigSummary(cmd.OutOrStdout(), cfg)
			return nil
		},
	})
	return cmd
}

func printConfigSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "configuration valid")
	fmt.Fprintf(w, "  listen:    %s\n", cfg.Server.Listen)
	fmt.Fprintf(w, "  model:     %s (%s/%s)\n", cfg.Generator.Model, cfg.Generator.Project, cfg.Generator.Location)
	fmt.Fprintf(w, "  tolerance: %s\n", cfg.Slack.TimestampTolerance)

	fps := cfg.Fingerprints()
	keys := make([]string, 0, len(fps))
	for k := range fps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, fps[k])
	}
}

func signCmd() *cobra.Command {
	var (
		bodyFile  string
		timestamp int64
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print Slack signature headers for a request body (reads stdin by default)",
		Long: "Computes X-Slack-Request-Timestamp and X-Slack-Signature for a body using\n" +
			"$" + config.EnvSigningSecret + ", for driving the endpoint with curl.",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv(config.EnvSigningSecret)
			if secret == "" {
				return fmt.Errorf("$%s is not set", config.EnvSigningSecret)
			}

			var body []byte
			var err error
			if bodyFile == "" || bodyFile == "-" {
				body, err = io.ReadAll(cmd.InOrStdin())
			} else {
				body, err = os.ReadFile(bodyFile)
			}
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}

			if timestamp == 0 {
				timestamp = time.Now().Unix()
			}
			ts := strconv.FormatInt(timestamp, 10)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", webhook.HeaderTimestamp, ts)
			fmt.Fprintf(out, "%s: %s\n", webhook.HeaderSignature, webhook.Sign(body, ts, []byte(secret)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&bodyFile, "body", "b", "", "file containing the request body (- for stdin)")
	cmd.Flags().Int64Var(&timestamp, "timestamp", 0, "unix timestamp to sign (default: now)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mention-relay version %s\n", version)
		},
	}
}
