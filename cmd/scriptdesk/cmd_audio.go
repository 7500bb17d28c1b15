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
	rootCmd.AddCommand(audioCmd)
	audioCmd.AddCommand(audioListCmd, audioExportCmd)
	audioListCmd.Flags().String("channel", "", "only show audio for this channel")
}

func audioArchive() *state.AudioArchive {
	return state.NewAudioArchive(loadConfig().DataDir)
}

var audioCmd = &cobra.Command{
	Use:   "audio",
	Short: "Inspect archived voice notes",
}

var audioListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived audio, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, _ := cmd.Flags().GetString("channel")
		archive := audioArchive()
		metas, err := archive.List(context.Background())
		if err != nil {
			return fmt.Errorf("list audio: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tCHANNEL\tRUN\tVOICE\tCHUNKS\tBYTES\tFILE")
		shown := 0
		for _, m := range metas {
			if channel != "" && m.ChannelID != types.ChannelID(channel) {
				continue
			}
			shown++
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				m.ID,
				m.CreatedAt.Local().Format(time.DateTime),
				m.ChannelID,
				m.RunID,
				m.Voice,
				m.Chunks,
				m.Bytes,
				archive.Path(m),
			)
		}
		if shown == 0 {
			fmt.Println("No archived audio.")
			return nil
		}
		return w.Flush()
	},
}

var audioExportCmd = &cobra.Command{
	Use:   "export <id> <file>",
	Short: "Copy an archived voice note to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		meta, audio, err := audioArchive().Get(context.Background(), types.ArtifactID(args[0]))
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[1], audio, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", args[1], err)
		}
		fmt.Fprintf(os.Stdout, "Wrote %d bytes (%s) to %s.\n", meta.Bytes, meta.MimeType, args[1])
		return nil
	},
}
