package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/scriptdesk/internal/command"
)

func init() {
	rootCmd.AddCommand(classifyCmd)
}

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Show how a message would be classified",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		intent := command.Classify(strings.Join(args, " "))
		fmt.Fprintf(os.Stdout, "kind: %s\n", intent.Kind)
		switch intent.Kind {
		case command.KindHeadlineSelect:
			fmt.Fprintf(os.Stdout, "index: %d\n", intent.Index)
		case command.KindVoicePerson:
			fmt.Fprintf(os.Stdout, "voice: %s\n", intent.VoiceName)
			fallthrough
		case command.KindTopic, command.KindScript, command.KindVisuals, command.KindVoice:
			fmt.Fprintf(os.Stdout, "content: %s\n", intent.Content)
		}
		return nil
	},
}
