package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apihttp "github.com/Paintersrp/tasktide/internal/api/http"
	"github.com/Paintersrp/tasktide/internal/engine"
	"github.com/Paintersrp/tasktide/internal/task"
)

var newAPIServer = apihttp.NewServer

const apiReadyDelay = 200 * time.Millisecond

func newServeCmd(ctx *context) *cobra.Command {
	var (
		apiAddr   string
		deadlines []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the deadline scheduler headless with the HTTP control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				apiAddr = cfg.API.Addr
			}
			logger, err := ctx.startLogging(cmd, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			events := make(chan engine.Event, eventBuffer)
			manager, err := ctx.newManager(cfg, managerOptions{events: events})
			if err != nil {
				return err
			}
			tracked := ctx.trackEvents(events, logger, eventBuffer)
			defer func() {
				close(events)
				<-tracked
			}()

			runCtx, cancel := stdcontext.WithCancel(cmd.Context())
			defer cancel()

			if err := manager.Refresh(runCtx); err != nil {
				return err
			}
			if err := applyDeadlineFlags(manager, deadlines, time.Now()); err != nil {
				return err
			}

			server, err := newAPIServer(apihttp.Config{Addr: apiAddr, Controller: NewControlAPI(manager, nil)})
			if err != nil {
				return err
			}
			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Run(runCtx)
			}()

			readyTimer := time.NewTimer(apiReadyDelay)
			defer readyTimer.Stop()
			select {
			case err := <-errCh:
				return serverError(err)
			case <-readyTimer.C:
			case <-runCtx.Done():
				return serverError(<-errCh)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Control API listening on %s\n", server.Addr())
			logger.Info("control api listening", "addr", server.Addr(), "tick", manager.Interval())

			managerDone := make(chan error, 1)
			go func() {
				managerDone <- manager.Run(runCtx)
			}()

			var runErr error
			select {
			case err := <-errCh:
				runErr = serverError(err)
				cancel()
				<-managerDone
			case <-managerDone:
				cancel()
				runErr = serverError(<-errCh)
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&apiAddr, "addr", "", "Address for the HTTP control API (defaults to api.addr)")
	cmd.Flags().StringArrayVar(&deadlines, "deadline", nil, "Set a deadline at startup as pid=spec (repeatable; spec like 30m, 1h, 90 or RFC3339)")
	return cmd
}

func applyDeadlineFlags(manager *engine.Manager, values []string, now time.Time) error {
	for _, value := range values {
		rawPID, expr, ok := strings.Cut(value, "=")
		if !ok {
			return fmt.Errorf("--deadline %q: expected pid=spec", value)
		}
		pid, err := parsePID(strings.TrimSpace(rawPID))
		if err != nil {
			return fmt.Errorf("--deadline %q: %w", value, err)
		}
		spec, err := task.ParseDeadline(expr, now)
		if err != nil {
			return fmt.Errorf("--deadline %q: %w", value, err)
		}
		if _, err := manager.SetDeadline(pid, spec); err != nil {
			return fmt.Errorf("--deadline %q: %w", value, err)
		}
	}
	return nil
}

func serverError(err error) error {
	if err == nil || errors.Is(err, stdcontext.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
