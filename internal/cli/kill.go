package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/tasktide/internal/engine"
)

func newKillCmd(ctx *context) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "kill <pid>",
		Short: "End a task using the graceful termination protocol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := ctx.startLogging(cmd, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			events := make(chan engine.Event, eventBuffer)
			manager, err := ctx.newManager(cfg, managerOptions{events: events, forceKill: force, skipIcons: true})
			if err != nil {
				return err
			}
			tracked := ctx.trackEvents(events, logger, eventBuffer)
			defer func() {
				close(events)
				<-tracked
			}()

			if err := manager.Refresh(cmd.Context()); err != nil {
				return err
			}
			t, ok := manager.Board().Lookup(pid)
			if !ok {
				return fmt.Errorf("pid %d: %w", pid, engine.ErrTaskNotFound)
			}
			// Grace periods run to completion even if the command is interrupted.
			if err := manager.Terminate(cmd.Context(), pid); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Terminated %s (pid %d)\n", t.Name, pid)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Skip save attempts and kill immediately")
	return cmd
}

func parsePID(raw string) (int32, error) {
	pid, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q", raw)
	}
	if int(pid) == os.Getpid() {
		return 0, fmt.Errorf("refusing to terminate tasktide itself (pid %d)", pid)
	}
	return int32(pid), nil
}
