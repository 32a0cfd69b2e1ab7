package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cathedral/cathedral/internal/app"
	"github.com/cathedral/cathedral/internal/memory"
)

var memoriesCmd = &cobra.Command{
	Use:   "memories",
	Short: "Manage what a persona remembers",
}

var memoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStores(cmd, func(ctx context.Context, st app.Stores) error {
			fmt.Fprintln(cmd.OutOrStdout(), memory.FormatForDisplay(st.Memories.List(ctx)))
			return nil
		})
	},
}

var memoriesAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Remember a fact",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStores(cmd, func(ctx context.Context, st app.Stores) error {
			m, err := st.Memories.Add(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved [%s] %s\n", m.ID, m.Text)
			return nil
		})
	},
}

var memoriesForgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Forget a memory by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStores(cmd, func(ctx context.Context, st app.Stores) error {
			ok, err := st.Memories.Delete(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("memory %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot memory %s.\n", args[0])
			return nil
		})
	},
}

func init() {
	memoriesCmd.AddCommand(memoriesListCmd, memoriesAddCmd, memoriesForgetCmd)
	rootCmd.AddCommand(memoriesCmd)
}
