package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/opsdesk/internal/logging"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
	"github.com/twiced-technology-gmbh/opsdesk/internal/reminder"
)

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Send due-date reminders",
	Long: `Notifies assignees of tasks that are overdue or due within reminders.due_soon.
Each task gets at most one reminder of each kind per day.

With --once a single pass runs and the command exits. Otherwise the job runs on
reminders.schedule (cron syntax, seconds optional) until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runReminders,
}

func init() {
	remindersCmd.Flags().Bool("once", false, "run one pass and exit")
	remindersCmd.Flags().String("schedule", "", "cron schedule overriding reminders.schedule")
	remindersCmd.Flags().String("tz", "", "time zone for the schedule (default local)")
	rootCmd.AddCommand(remindersCmd)
}

func runReminders(cmd *cobra.Command, _ []string) error {
	once, _ := cmd.Flags().GetBool("once")
	spec, _ := cmd.Flags().GetString("schedule")
	tz, _ := cmd.Flags().GetString("tz")

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	log := logging.Logger().With("component", "reminders")
	opts := []reminder.Option{
		reminder.WithLogger(log),
		reminder.OnRun(func(sent int, err error) {
			if err == nil && sent > 0 && outputFormat() != output.FormatJSON {
				output.Messagef(os.Stdout, "%s  sent %d reminder(s)", time.Now().Format(time.DateTime), sent)
			}
		}),
	}
	if tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("loading time zone %q: %w", tz, err)
		}
		opts = append(opts, reminder.WithLocation(loc))
	}
	sched := reminder.New(ws, opts...)

	if once {
		sent, err := sched.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		if outputFormat() == output.FormatJSON {
			return output.JSON(os.Stdout, map[string]any{"sent": sent})
		}
		output.Messagef(os.Stdout, "Sent %d reminder(s)", sent)
		return nil
	}

	if spec == "" {
		spec = ws.Config().Reminders.Schedule
	}
	if _, err := sched.Schedule(spec); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Sending reminders on %q... (Ctrl+C to stop)\n", spec)
	sched.Run(cmd.Context())
	return nil
}
