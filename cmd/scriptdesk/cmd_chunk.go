package main

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/user/scriptdesk/internal/chunk"
)

func init() {
	rootCmd.AddCommand(chunkCmd)
	chunkCmd.Flags().String("file", "", "read text from file instead of stdin")
	chunkCmd.Flags().String("profile", "speech", "chunk sizes: speech or distribution")
}

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Split text the way voice notes and scripts are split",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		profile, _ := cmd.Flags().GetString("profile")

		var opts chunk.Options
		switch profile {
		case "speech":
			opts = chunk.SpeechOptions
		case "distribution":
			opts = chunk.DistributionOptions
		default:
			return fmt.Errorf("unknown profile %q (want speech or distribution)", profile)
		}

		var (
			data []byte
			err  error
		)
		if path != "" {
			data, err = os.ReadFile(path)
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		chunks := chunk.Split(string(data), opts)
		for _, c := range chunks {
			fmt.Fprintf(os.Stdout, "--- chunk %d (%d chars, ~%ds) ---\n%s\n",
				c.SequenceIndex+1, utf8.RuneCountInString(c.Content), c.EstimatedDurationSeconds, c.Content)
		}
		fmt.Fprintf(os.Stdout, "%d chunk(s)\n", len(chunks))
		return nil
	},
}
