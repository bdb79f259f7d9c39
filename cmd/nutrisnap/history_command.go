package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/nutrisnap/internal/bootstrap"
	domain "github.com/bryanwahyu/nutrisnap/internal/domain/meal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var limit int

	cmd := &cobra.Command{
		Use:   "history <user>",
		Short: "List a user's recorded meals, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity := domain.NormalizeIdentity(args[0])
			out := cmd.OutOrStdout()
			if domain.IsGuest(identity) {
				fmt.Fprintln(out, "Log in with a username to track your meal history.")
				return nil
			}

			app, err := bootstrap.New(cmd.Context(), ctx.cfg, ctx.logger(cmd), nil)
			if err != nil {
				return err
			}
			defer app.Close()

			entries, err := app.Service.History(cmd.Context(), identity)
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			if asJSON {
				return writeJSON(cmd, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No meals tracked yet.")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name
				if name == "" {
					name = "Meal"
				}
				rows = append(rows, []string{
					e.Timestamp,
					name,
					strconv.Itoa(e.HealthScore) + "/100",
					strconv.Itoa(e.Calories),
					e.ShortReport,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"When", "Meal", "Health", "Calories", "Report"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n entries")
	return cmd
}
