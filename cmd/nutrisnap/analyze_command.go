package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/nutrisnap/internal/bootstrap"
	domain "github.com/bryanwahyu/nutrisnap/internal/domain/meal"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var user string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze <photo>",
		Short: "Analyze one meal photo and record it in the user's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read photo: %w", err)
			}

			app, err := bootstrap.New(cmd.Context(), ctx.cfg, ctx.logger(cmd), nil)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Service.Analyze(cmd.Context(), user, blob)
			if err != nil {
				return userFacing(err)
			}

			if asJSON {
				return writeJSON(cmd, map[string]any{
					"identity":  domain.NormalizeIdentity(user),
					"record":    res.Record,
					"timestamp": res.Entry.Timestamp,
					"persisted": res.Persisted,
					"photo_url": res.PhotoURL,
				})
			}
			printCard(cmd.OutOrStdout(), res.Record)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", domain.GuestIdentity, "Username whose history receives the result")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as JSON")
	return cmd
}

// userFacing hides the cause of analysis failures; it is already logged.
func userFacing(err error) error {
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		return errors.New("API Error: Missing credentials. Set OPENROUTER_API_KEY")
	case errors.Is(err, domain.ErrImageDecode):
		return fmt.Errorf("could not read that image: %w", err)
	case errors.Is(err, domain.ErrAnalysisFailed):
		return errors.New(domain.FailureMessage)
	}
	return err
}
