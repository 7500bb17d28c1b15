package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/scriptdesk/internal/scheduler"
	"github.com/user/scriptdesk/internal/state"
	"github.com/user/scriptdesk/internal/types"
)

func init() {
	rootCmd.AddCommand(jobCmd)
	jobCmd.AddCommand(jobAddCmd, jobListCmd, jobRemoveCmd, jobEnableCmd, jobDisableCmd)

	jobAddCmd.Flags().String("name", "", "job name (required)")
	jobAddCmd.Flags().String("text", "", "message text injected when the job runs (required)")
	jobAddCmd.Flags().String("schedule", "", "cron schedule expression; empty for webhook-only jobs")
	jobAddCmd.Flags().String("channel", "", "target channel, e.g. whatsapp:group:Newsroom (required)")
	_ = jobAddCmd.MarkFlagRequired("name")
	_ = jobAddCmd.MarkFlagRequired("text")
	_ = jobAddCmd.MarkFlagRequired("channel")
}

func jobStore() *state.JobStore {
	cfg := loadConfig()
	return state.NewJobStore(filepath.Join(cfg.DataDir, "jobs.json"))
}

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage scheduled and webhook jobs",
	Long: `A job injects a message into a channel as if a user had sent it,
either on a cron schedule or via POST /webhook/<name>. A running daemon
picks up changes within 30 seconds.`,
}

var jobAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new job",
	Args:  cobra.NoArgs,
	Example: `  scriptdesk job add --name morning-agenda --text agenda \
    --schedule "0 8 * * *" --channel whatsapp:group:Newsroom`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		text, _ := cmd.Flags().GetString("text")
		schedule, _ := cmd.Flags().GetString("schedule")
		channel, _ := cmd.Flags().GetString("channel")

		if schedule != "" {
			if err := scheduler.ValidateSchedule(schedule); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", schedule, err)
			}
		}
		ch := types.ChannelID(channel)
		if ch.Transport() == channel {
			return fmt.Errorf("channel must be namespaced, e.g. telegram:<chat id>")
		}

		job := &state.Job{
			Name:     name,
			Text:     text,
			Schedule: schedule,
			Channel:  ch,
			Enabled:  true,
		}
		if err := jobStore().Add(job); err != nil {
			return fmt.Errorf("add job: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Job %q added.\n", name)
		return nil
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := jobStore().List()
		if err != nil {
			return fmt.Errorf("list jobs: %w", err)
		}

		if len(jobs) == 0 {
			fmt.Println("No jobs configured.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSCHEDULE\tENABLED\tCHANNEL\tTEXT")
		for _, j := range jobs {
			schedule := j.Schedule
			if schedule == "" {
				schedule = "(webhook)"
			}
			fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\n", j.Name, schedule, j.Enabled, j.Channel, j.Text)
		}
		return w.Flush()
	},
}

var jobRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := jobStore().Remove(args[0]); err != nil {
			return fmt.Errorf("remove job: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Job %q removed.\n", args[0])
		return nil
	},
}

var jobEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setJobEnabled(args[0], true)
	},
}

var jobDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setJobEnabled(args[0], false)
	},
}

func setJobEnabled(name string, enabled bool) error {
	if err := jobStore().SetEnabled(name, enabled); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	status := "disabled"
	if enabled {
		status = "enabled"
	}
	fmt.Fprintf(os.Stdout, "Job %q %s.\n", name, status)
	return nil
}
