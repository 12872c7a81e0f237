package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/capturebadge"
	"pkt.systems/capturebadge/core"
	"pkt.systems/capturebadge/internal/appconfig"
	"pkt.systems/capturebadge/internal/eventbus"
	"pkt.systems/capturebadge/internal/nativemsg"
	"pkt.systems/capturebadge/schema"
	"pkt.systems/pslog"
)

type appliedLine struct {
	Type   string        `json:"type"`
	TabID  schema.TabID  `json:"tabId"`
	Method schema.Method `json:"method"`
	Value  any           `json:"value"`
	Forced bool          `json:"forced,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func newReplayCmd() *cobra.Command {
	var cfgPath string
	var live bool
	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Feed newline-delimited host messages through the engine and print applied calls",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if !live {
				cfg.Indicator.Kind = appconfig.IndicatorLog
			}
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runReplay(cmd.Context(), cfg, in, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&live, "live", false, "send calls to the configured indicator instead of the log")
	return cmd
}

func runReplay(ctx context.Context, cfg appconfig.Config, in io.Reader, out io.Writer) error {
	logger := pslog.Ctx(ctx)
	deps := capturebadge.EngineDeps{Logger: logger}
	if cfg.Indicator.Kind == appconfig.IndicatorNativeMessaging {
		// Replay has no extension on the other end of stdout.
		deps.Indicator = core.NewLogIndicator(logger)
	}
	engine, err := capturebadge.NewEngine(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer engine.Close()

	writer := nativemsg.NewLineWriter(out)
	events, unsubscribe := engine.Bus().Subscribe(eventbus.AllTabs)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for event := range events {
			line := appliedLine{Type: "applied", TabID: event.TabID, Method: event.Method, Value: event.Value, Forced: event.Forced}
			if event.Err != nil {
				line.Error = event.Err.Error()
			}
			if err := writer.Write(line); err != nil {
				logger.Warn("replay print failed", "err", err)
			}
		}
	}()

	host := nativemsg.NewHost(nativemsg.NewLineReader(in, cfg.Host.MaxMessageBytes), writer, nil, engine.Router())
	serveErr := host.Serve(ctx)
	waitErr := engine.Router().Wait(ctx)
	unsubscribe()
	<-printed
	if serveErr != nil {
		return serveErr
	}
	return waitErr
}
