package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/tasktide/internal/api"
	"github.com/Paintersrp/tasktide/internal/cliutil"
	"github.com/Paintersrp/tasktide/internal/task"
)

func newListCmd(ctx *context) *cobra.Command {
	var (
		filter string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print a snapshot of running tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig(cmd)
			if err != nil {
				return err
			}
			manager, err := ctx.newManager(cfg, managerOptions{skipIcons: true})
			if err != nil {
				return err
			}
			if err := manager.Search(cmd.Context(), filter); err != nil {
				return err
			}

			board := manager.Board()
			now := board.GeneratedAt
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(api.NewBoardReport(board, now))
			}

			tasks := append([]task.Task(nil), board.Tasks...)
			task.SortByName(tasks)

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join(cliutil.TaskColumns, "\t"))
			for _, t := range tasks {
				fmt.Fprintln(w, strings.Join(cliutil.TaskRow(t, now), "\t"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if supportsInteractiveOutput(cmd) {
				fmt.Fprintf(out, "\n%s\n", cliutil.Summary(board))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Only show tasks whose name contains this text (case-insensitive)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the board as JSON")
	return cmd
}
