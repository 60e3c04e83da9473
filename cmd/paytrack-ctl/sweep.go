package main

import (
	"encoding/json"

	"github.com/BearBump/PayTrack/internal/bootstrap"
	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one sweep: expire stale sessions and retry declared ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			rep, err := bootstrap.NewSweeper(env.store, env.engine, env.settings, nil, env.log).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
}
