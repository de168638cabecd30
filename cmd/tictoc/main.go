package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/tictoc/internal/cliconfig"
	"github.com/bft-labs/tictoc/pkg/log"
)

const helpDescription = `
Minimal request-reply control protocol over TCP.

A responder answers every TIC with TOC and exits on STOP. Anything else is
logged with a byte dump and still answered. Configure via file
($HOME/.tictoc/config.toml), TICTOC_* environment variables, or flags.
`

var exampleUsage = strings.TrimSpace(`
  tictoc serve --address tcp://*:5555
  tictoc send TIC TIC STOP --target tcp://localhost:5555 --dump
  tictoc send --count 10 --mode wide
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli holds the configuration shared by all subcommands.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	changed map[string]bool
}

// load resolves the configuration: flags > env (TICTOC_*) > file > defaults.
func (c *cli) load(cmd *cobra.Command) error {
	c.changed = map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { c.changed[f.Name] = true })

	if fc, ok, err := c.readFile(); err != nil {
		return err
	} else if ok {
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, c.changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&c.cfg, c.changed); err != nil {
		return err
	}
	return c.cfg.Validate()
}

// configFile returns the config path in effect, explicit or default.
func (c *cli) configFile() string {
	if c.cfgPath != "" {
		return c.cfgPath
	}
	return cliconfig.DefaultConfigPath()
}

func (c *cli) readFile() (cliconfig.FileConfig, bool, error) {
	path := c.configFile()
	if path == "" || !cliconfig.FileExists(path) {
		return cliconfig.FileConfig{}, false, nil
	}
	fc, err := cliconfig.LoadFileConfig(path)
	if err != nil {
		return fc, false, fmt.Errorf("load config: %w", err)
	}
	return fc, true, nil
}

func (c *cli) logger() (*log.ZerologAdapter, error) {
	return log.New(os.Stderr, c.cfg.LogFormat, c.cfg.LogLevel)
}

func main() {
	c := &cli{cfg: cliconfig.DefaultConfig()}

	root := &cobra.Command{
		Use:           "tictoc",
		Short:         "Minimal request-reply control protocol",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.tictoc/config.toml)")
	pf.StringVar(&c.cfg.Mode, "mode", c.cfg.Mode, "text encoding of commands: narrow or wide")
	pf.IntVar(&c.cfg.MaxFrameBytes, "max-frame-bytes", c.cfg.MaxFrameBytes, "largest accepted frame")
	pf.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level: debug, info, warn, error")
	pf.StringVar(&c.cfg.LogFormat, "log-format", c.cfg.LogFormat, "log format: console or json")

	root.AddCommand(newServeCmd(c), newSendCmd(c))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tictoc: %v\n", err)
		os.Exit(1)
	}
}
