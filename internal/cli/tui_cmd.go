package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/tasktide/internal/engine"
	"github.com/Paintersrp/tasktide/internal/tui"
)

func newTuiCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive task manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !supportsInteractiveOutput(cmd) {
				return fmt.Errorf("tui requires an interactive terminal")
			}
			return runTUI(cmd, ctx, tui.New)
		},
	}
	return cmd
}

type uiFactory func(ctrl tui.Controller, opts ...tui.Option) *tui.UI

func runTUI(cmd *cobra.Command, ctx *context, newUI uiFactory, uiOpts ...tui.Option) error {
	cfg, err := ctx.loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := ctx.startLogging(cmd, cfg, io.Discard)
	if err != nil {
		return err
	}

	events := make(chan engine.Event, eventBuffer)
	manager, err := ctx.newManager(cfg, managerOptions{events: events})
	if err != nil {
		return err
	}

	runCtx, cancel := stdcontext.WithCancel(cmd.Context())
	defer cancel()

	tracked := ctx.trackEvents(events, logger, eventBuffer)
	if err := manager.Refresh(runCtx); err != nil {
		logger.Warn("initial refresh failed", "error", err)
	}

	sub, release, ok := ctx.subscribeEvents(eventBuffer)
	if ok {
		defer release()
		uiOpts = append(uiOpts, tui.WithEventSource(sub))
	}
	ui := newUI(manager, uiOpts...)

	managerDone := make(chan error, 1)
	go func() {
		managerDone <- manager.Run(runCtx)
	}()

	uiErr := ui.Run(runCtx)
	cancel()

	// The manager stops once its in-flight tick, grace periods included, ends.
	if err := <-managerDone; err != nil && !errors.Is(err, stdcontext.Canceled) {
		uiErr = errors.Join(uiErr, err)
	}
	close(events)
	<-tracked
	return uiErr
}
