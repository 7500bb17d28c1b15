package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/scriptdesk/internal/state"
	"github.com/user/scriptdesk/internal/types"
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.Flags().String("channel", "", "only show entries for this channel")
	journalCmd.Flags().Int("limit", 20, "number of most recent entries to show (0 for all)")
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show recently processed messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, _ := cmd.Flags().GetString("channel")
		limit, _ := cmd.Flags().GetInt("limit")

		cfg := loadConfig()
		entries, err := state.NewJournal(cfg.DataDir).Tail(context.Background(), types.ChannelID(channel), limit)
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("Journal is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tCHANNEL\tINTENT\tPATH\tSENT\tDURATION\tFAILURE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
				e.At.Local().Format(time.DateTime),
				e.ChannelID,
				e.Intent,
				e.Path,
				e.Sent, e.Deliveries,
				e.Duration.Round(time.Millisecond),
				e.Failure,
			)
		}
		return w.Flush()
	},
}
