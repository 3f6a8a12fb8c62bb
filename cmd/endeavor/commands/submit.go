package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"endeavor-cli/lib/scrapers/endeavor"
	"endeavor-cli/lib/serviceutil"

	"github.com/spf13/cobra"
)

var submitIds []string

func init() {
	submitCmd.Flags().StringSliceVar(&submitIds, "ids", nil,
		"comma separated entry ids to submit")
	submitCmd.MarkFlagRequired("ids")
	rootCmd.AddCommand(submitCmd)
}

var submitCmd = &cobra.Command{
	Use:   "submit --ids <id,...>",
	Short: "Submits a standard working day for the given entry ids.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		var ids []string
		for _, id := range submitIds {
			if id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			serviceutil.Fatal("nothing to submit", errors.New("--ids came back empty"))
		}

		session, err := newSession(ctx)
		if err != nil {
			serviceutil.Fatal("failed to open session", err)
		}

		outcomes, err := session.SubmitAll(ctx, ids, endeavor.DefaultHoursForm())
		if outcomes == nil {
			serviceutil.Fatal("failed to submit", err)
		}

		failed := 0
		reported := make(map[string]bool, len(outcomes))
		for _, id := range ids {
			if reported[id] {
				continue
			}
			reported[id] = true

			if outcome := outcomes[id]; outcome != nil {
				slog.Error("submission failed", "id", id, "err", outcome)
				failed++
				continue
			}
			slog.Info("submitted", "id", id)
		}

		if err != nil {
			serviceutil.Fatal(fmt.Sprintf("%d submission(s) failed", failed), err)
		}
	},
}
