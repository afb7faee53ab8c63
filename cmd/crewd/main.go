// Command crewd runs the digital-employee orchestrator.
//
// Usage:
//
//	crewd serve --config config.yaml
//	crewd validate --config config.yaml
//	crewd keygen
//	crewd set-webhook --config config.yaml --url https://example.com/webhook/telegram/<token>
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/crewdhq/crewd/pkg/agent"
	"github.com/crewdhq/crewd/pkg/config"
	"github.com/crewdhq/crewd/pkg/llms"
	"github.com/crewdhq/crewd/pkg/logger"
	"github.com/crewdhq/crewd/pkg/memory"
	"github.com/crewdhq/crewd/pkg/metrics"
	"github.com/crewdhq/crewd/pkg/notify"
	"github.com/crewdhq/crewd/pkg/secrets"
	"github.com/crewdhq/crewd/pkg/scheduler"
	"github.com/crewdhq/crewd/pkg/server"
	"github.com/crewdhq/crewd/pkg/store"
)

var version = "dev"

// CLI defines the command-line interface.
type CLI struct {
	Version    VersionCmd    `cmd:"" help:"Show version information."`
	Serve      ServeCmd      `cmd:"" help:"Run the scheduler and HTTP server."`
	Validate   ValidateCmd   `cmd:"" help:"Validate the configuration file."`
	Keygen     KeygenCmd     `cmd:"" help:"Generate a new encryption master key."`
	SetWebhook SetWebhookCmd `cmd:"" name:"set-webhook" help:"Register the Telegram webhook URL."`

	Config    string `short:"c" help:"Path to config file." default:"config.yaml" type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (text or json)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("crewd version %s\n", version)
	return nil
}

// ValidateCmd validates the configuration file.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if _, err := config.Load(cli.Config); err != nil {
		return err
	}
	fmt.Printf("%s: OK\n", cli.Config)
	return nil
}

// KeygenCmd generates a new encryption master key.
type KeygenCmd struct{}

func (c *KeygenCmd) Run() error {
	key, err := secrets.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}

// SetWebhookCmd registers the Telegram webhook URL with the Bot API.
type SetWebhookCmd struct {
	URL string `required:"" help:"Public webhook URL."`
}

func (c *SetWebhookCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot_token is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := notify.NewTelegram(cfg.Telegram.BotToken, "").SetWebhook(ctx, c.URL); err != nil {
		return err
	}
	fmt.Printf("webhook set: %s\n", c.URL)
	return nil
}

// ServeCmd runs the heartbeat scheduler and the HTTP server.
type ServeCmd struct{}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	cleanup, err := initLogger(cli, &cfg.Logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN, cfg.Store.MaxConns, cfg.Store.MaxIdle)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	m, runtimes, err := buildRuntimes(cfg, st)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: server.New(st, m, cfg.Telegram.BotToken).Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sched := scheduler.New(runtimes, cfg.Scheduler.DefaultWakeInterval, cfg.Scheduler.WakeTimeout)
		logger.Info("scheduler started", "agents", len(runtimes))
		return sched.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// buildRuntimes wires one runtime per provisioned agent across all
// workspaces. Coordinators get the task-routing role, everyone else
// heartbeats.
func buildRuntimes(cfg *config.Config, st store.Store) (*metrics.Metrics, []*agent.Runtime, error) {
	cipher, err := secrets.NewCipher(cfg.Secrets.MasterKey)
	if err != nil {
		return nil, nil, err
	}

	m := metrics.New()
	gateway := llms.NewGateway(st, cipher, m, nil)

	var notifier notify.Notifier
	if cfg.Telegram.BotToken != "" {
		notifier = notify.NewTelegram(cfg.Telegram.BotToken, "")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	workspaces, err := st.ListWorkspaces(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	var runtimes []*agent.Runtime
	for _, ws := range workspaces {
		agents, err := st.ListAgents(ctx, ws.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list agents for workspace %s: %w", ws.ID, err)
		}
		for _, a := range agents {
			mem, err := memory.NewStore(cfg.Memory.BaseDir, a.WorkspaceID, a.ID)
			if err != nil {
				return nil, nil, err
			}

			var worker agent.Worker = agent.Heartbeat{}
			if a.Role == store.RoleMainCoordinator {
				worker = agent.NewCoordinator(notifier, m)
			}

			runtimes = append(runtimes, agent.NewRuntime(a, st, gateway, mem, worker, m))
		}
	}
	return m, runtimes, nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("crewd"),
		kong.Description("crewd - multi-tenant digital employee orchestrator"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
