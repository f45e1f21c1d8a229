package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Fumiaki0604/reqflow/internal/notify"
)

func newNotifyCmd() *cobra.Command {
	var (
		days    int
		channel string
		noGate  bool
		overdue bool
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Notify Slack about due or overdue Backlog issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			params := notify.Params{
				DaysThreshold:      cfg.Notify.DaysThreshold,
				ChannelID:          cfg.Slack.DefaultChannelID,
				SkipWeekendHoliday: cfg.Notify.SkipWeekendHoliday && !noGate,
				Variant:            notify.VariantUpcoming,
			}
			if cmd.Flags().Changed("days") {
				params.DaysThreshold = days
			}
			if channel != "" {
				params.ChannelID = channel
			}
			if overdue {
				params.Variant = notify.VariantOverdue
			}

			result := buildNotifier(cfg).Run(cmd.Context(), params)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}

			if result.Error != "" {
				return fmt.Errorf("notify failed: %s", result.Error)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 3, "due-date threshold in days")
	cmd.Flags().StringVar(&channel, "channel", "", "Slack channel id (default from config)")
	cmd.Flags().BoolVar(&noGate, "no-gate", false, "skip the weekday/holiday gate")
	cmd.Flags().BoolVar(&overdue, "overdue", false, "include already-overdue issues (no lower bound)")

	return cmd
}
