package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bft-labs/tictoc"
	"github.com/bft-labs/tictoc/internal/cliconfig"
	"github.com/bft-labs/tictoc/internal/configwatch"
	"github.com/bft-labs/tictoc/pkg/log"
	"github.com/bft-labs/tictoc/pkg/session"
	"github.com/bft-labs/tictoc/pkg/transport"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the responder until STOP, SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(cmd); err != nil {
				return err
			}
			return c.serve()
		},
	}

	f := cmd.Flags()
	f.StringVar(&c.cfg.Address, "address", c.cfg.Address, "endpoint to bind, e.g. tcp://*:5555")
	f.BoolVar(&c.cfg.Strict, "strict", c.cfg.Strict, "answer malformed and unknown commands with ERR")
	f.DurationVar(&c.cfg.ReceiveTimeout, "receive-timeout", c.cfg.ReceiveTimeout, "exit when no request arrives in time (0 waits forever)")
	f.IntVar(&c.cfg.MaxPeers, "max-peers", c.cfg.MaxPeers, "maximum concurrently connected requesters")
	f.BoolVar(&c.cfg.Watch, "watch", c.cfg.Watch, "reload strict and log-level when the config file changes")
	return cmd
}

func (c *cli) serve() error {
	logger, err := c.logger()
	if err != nil {
		return err
	}
	logger.Info("configuration",
		log.String("address", c.cfg.Address),
		log.String("mode", c.cfg.Mode),
		log.Bool("strict", c.cfg.Strict),
		log.Int("max_peers", c.cfg.MaxPeers),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := tictoc.Config{
		Session: session.Config{
			Address:        c.cfg.Address,
			Mode:           c.cfg.TextMode,
			Strict:         c.cfg.Strict,
			ReceiveTimeout: c.cfg.ReceiveTimeout,
		},
		TCP: transport.TCPConfig{
			MaxPeers:      c.cfg.MaxPeers,
			MaxFrameBytes: c.cfg.MaxFrameBytes,
			Logger:        logger,
		},
	}
	loop, err := tictoc.Listen(ctx, cfg,
		session.WithLogger(logger),
		session.WithEventHandler(&stateLogger{logger: logger}),
	)
	if err != nil {
		return err
	}
	defer loop.Close()

	if c.cfg.Watch {
		if w := c.watch(loop, logger); w != nil {
			defer w.Stop()
		}
	}

	err = loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("received signal, stopping")
		return nil
	}
	return err
}

// watch starts hot reload of the config file, if there is one.
func (c *cli) watch(loop *session.Loop, logger *log.ZerologAdapter) *configwatch.Watcher {
	path := c.configFile()
	if path == "" || !cliconfig.FileExists(path) {
		return nil
	}

	w := configwatch.New(path, 0, logger, func(fc cliconfig.FileConfig) {
		next, lvl, err := c.reloaded(fc)
		if err != nil {
			logger.Warn("ignoring config update", log.Err(err))
			return
		}
		logger.SetLevel(lvl)
		loop.SetStrict(next.Strict)
	})
	if err := w.Start(context.Background()); err != nil {
		logger.Warn("config watcher disabled", log.String("path", path), log.Err(err))
		return nil
	}
	return w
}

// reloaded resolves the configuration again from defaults with fc as the
// file layer. Keys removed from the file fall back to their defaults, and
// flags still win.
func (c *cli) reloaded(fc cliconfig.FileConfig) (cliconfig.Config, zerolog.Level, error) {
	next := cliconfig.DefaultConfig()
	if err := cliconfig.ApplyFileConfig(&next, fc, c.changed); err != nil {
		return next, 0, err
	}
	if err := cliconfig.ApplyEnvConfig(&next, c.changed); err != nil {
		return next, 0, err
	}
	if c.changed["strict"] {
		next.Strict = c.cfg.Strict
	}
	if c.changed["log-level"] {
		next.LogLevel = c.cfg.LogLevel
	}
	lvl, err := log.ParseLevel(next.LogLevel)
	if err != nil {
		return next, 0, err
	}
	return next, lvl, nil
}

// stateLogger reports loop transitions.
type stateLogger struct {
	session.NoopEventHandler
	logger log.Logger
}

func (s *stateLogger) OnStateChange(previous, current session.State) {
	s.logger.Debug("session state changed",
		log.String("from", previous.String()),
		log.String("to", current.String()),
	)
}
