package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/BearBump/PayTrack/internal/bootstrap"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func parseSMSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse-sms [text]",
		Short: "Parse a provider SMS and print the extracted payment fields",
		Long: `Parse a provider SMS notification the way ingestion does.
The text is read from the argument, or from stdin when no argument is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			text := ""
			if len(args) == 1 {
				text = args[0]
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(b)
			}

			p, err := bootstrap.NewParser(cfg).Parse(strings.TrimSpace(text))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "reference:  %s\n", p.Reference)
			fmt.Fprintf(out, "amount:     %s (%d minor)\n", decimal.New(p.AmountMinor, -2).StringFixed(2), p.AmountMinor)
			if p.SenderID != nil {
				fmt.Fprintf(out, "sender:     %s\n", *p.SenderID)
			}
			fmt.Fprintf(out, "event_time: %s\n", p.EventTime.UTC().Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}
	return cmd
}
