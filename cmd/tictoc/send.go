package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bft-labs/tictoc"
	"github.com/bft-labs/tictoc/pkg/codec"
	"github.com/bft-labs/tictoc/pkg/diag"
	"github.com/bft-labs/tictoc/pkg/session"
	"github.com/bft-labs/tictoc/pkg/transport"
)

func newSendCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [COMMAND...]",
		Short: "Send commands to a responder and print the replies",
		Long: "Send each COMMAND in order and print its reply. Without arguments\n" +
			"TIC is sent --count times. STOP is sent without waiting for a reply.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(cmd); err != nil {
				return err
			}
			return c.send(cmd.Context(), cmd.OutOrStdout(), commands(args, c.cfg.Count))
		},
	}

	f := cmd.Flags()
	f.StringVar(&c.cfg.Target, "target", c.cfg.Target, "responder address, e.g. tcp://localhost:5555")
	f.IntVar(&c.cfg.Count, "count", c.cfg.Count, "number of TIC requests when no command is given")
	f.BoolVar(&c.cfg.Dump, "dump", c.cfg.Dump, "print a byte dump of every frame")
	f.DurationVar(&c.cfg.RequestTimeout, "request-timeout", c.cfg.RequestTimeout, "timeout per request")
	f.DurationVar(&c.cfg.DialTimeout, "dial-timeout", c.cfg.DialTimeout, "how long to retry connecting")
	return cmd
}

func commands(args []string, count int) []string {
	if len(args) > 0 {
		return args
	}
	out := make([]string, count)
	for i := range out {
		out[i] = session.CommandTic
	}
	return out
}

func (c *cli) send(ctx context.Context, out io.Writer, cmds []string) error {
	logger, err := c.logger()
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()
	rc := transport.DefaultRequesterConfig()
	rc.MaxFrameBytes = c.cfg.MaxFrameBytes
	rc.Logger = logger
	client, err := tictoc.DialWithConfig(dialCtx, c.cfg.Target, c.cfg.TextMode, rc)
	if err != nil {
		return err
	}
	defer client.Close()

	for _, cmd := range cmds {
		if err := c.exchange(ctx, out, client, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (c *cli) exchange(ctx context.Context, out io.Writer, client *tictoc.Client, cmd string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	request, reply, err := client.Exchange(ctx, cmd)
	if c.cfg.Dump && request != nil {
		fmt.Fprintf(out, "> %s\n", diag.Format(request))
	}
	if err != nil {
		return err
	}
	if reply == nil {
		fmt.Fprintf(out, "%s sent\n", cmd)
		return nil
	}
	if c.cfg.Dump {
		fmt.Fprintf(out, "< %s\n", diag.Format(reply))
	}

	text, err := codec.DecodeText(reply, c.cfg.TextMode)
	if err != nil {
		return fmt.Errorf("decode reply to %s: %w", cmd, err)
	}
	fmt.Fprintf(out, "%s -> %s\n", cmd, text)
	return nil
}
