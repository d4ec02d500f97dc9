package main

import (
	"context"
	"errors"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

const runtimeKey = "runtime"

// runtime is the per-invocation state shared by commands.
type runtime struct {
	engine  *goSession.Engine
	store   *store.RedisStore
	mini    *miniredis.Miniredis
	printer *printer
	log     *zap.Logger
}

func (rt *runtime) close() {
	if rt == nil {
		return
	}
	if rt.engine != nil {
		rt.engine.Close()
	}
	if rt.store != nil {
		_ = rt.store.Close()
	}
	if rt.mini != nil {
		rt.mini.Close()
	}
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "sessionctl",
		Usage:   "Session, rate-limit and verification-code administration",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			IssueCommand(),
			VerifyCommand(),
			RevokeCommand(),
			RevokeAllCommand(),
			RevokeDeviceCommand(),
			SessionsCommand(),
			SweepCommand(),
			RateLimitCommand(),
			CodeCommand(),
			HealthCommand(),
		},
		Before: setup,
		After:  teardown,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Optional env file with configuration",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Aliases: []string{"r"},
			Usage:   "Redis URL (overrides REDIS_URL)",
		},
		&cli.BoolFlag{
			Name:  "embedded",
			Usage: "Use a throwaway in-process Redis; state is lost on exit",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: text, json",
			Value:   "text",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable development logging",
		},
	}
}

func setup(c *cli.Context) error {
	// Help and version need no backend.
	switch c.Args().First() {
	case "", "help", "h":
		return nil
	}

	cfg, err := config.LoadFile(c.String("env-file"))
	if err != nil {
		return err
	}
	if u := c.String("redis-url"); u != "" {
		cfg.RedisURL = u
	}

	log := zap.NewNop()
	if c.Bool("verbose") {
		if log, err = logging.New(cfg.Env); err != nil {
			return err
		}
	}

	rt := &runtime{log: log}
	if c.Bool("embedded") {
		rt.mini, err = miniredis.Run()
		if err != nil {
			return fmt.Errorf("start embedded redis: %w", err)
		}
		cfg.RedisURL = "redis://" + rt.mini.Addr()
	}

	rt.printer, err = newPrinter(c.App.Writer, c.String("output"))
	if err != nil {
		rt.close()
		return err
	}

	rt.store, err = store.Dial(c.Context, cfg.Dial())
	if err != nil {
		rt.close()
		return fmt.Errorf("connect to redis: %w", err)
	}

	ec := cfg.Engine()
	// Commands are one-shot; a background sweep would never run.
	ec.Session.SweepInterval = 0
	rt.engine, err = goSession.New().
		WithConfig(ec).
		WithStore(rt.store).
		WithLogger(log).
		Build()
	if err != nil {
		rt.close()
		return err
	}

	c.App.Metadata[runtimeKey] = rt
	return nil
}

func teardown(c *cli.Context) error {
	if rt, ok := c.App.Metadata[runtimeKey].(*runtime); ok {
		rt.close()
		delete(c.App.Metadata, runtimeKey)
	}
	return nil
}

func getRuntime(c *cli.Context) (*runtime, error) {
	if rt, ok := c.App.Metadata[runtimeKey].(*runtime); ok {
		return rt, nil
	}
	return nil, errors.New("not connected")
}

func commandContext(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
