package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cathedral/cathedral/internal/app"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStores(cmd, func(ctx context.Context, st app.Stores) error {
			sessions := st.Sessions.List(ctx)
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMESSAGES\tUPDATED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Name, len(st.History.Read(ctx, s.ID)), s.UpdatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		})
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	rootCmd.AddCommand(sessionsCmd)
}
