package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [session-id]",
		Short: "Resolve one session against its declared reference and print the verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			v, err := env.engine.ResolveForSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session: %s\nverdict: %s\n", v.SessionID, v.Kind)
			if v.ReceiptID != "" {
				fmt.Fprintf(out, "receipt: %s\n", v.ReceiptID)
			}
			if v.Rule != "" {
				fmt.Fprintf(out, "rule:    %s\n", v.Rule)
			}
			if v.Reason != "" {
				fmt.Fprintf(out, "reason:  %s\n", v.Reason)
			}
			return nil
		},
	}
}
