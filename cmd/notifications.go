package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/opsdesk/internal/board"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/notify"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"inbox", "n"},
	Short:   "Show and manage your notifications",
	Long: `Lists the notifications addressed to the current user, newest first,
including broadcasts to everyone or to the user's role.`,
	RunE: runNotificationsList,
}

var notificationsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List notifications",
	RunE:    runNotificationsList,
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read ID[,ID,...]",
	Short: "Mark notifications read",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotificationsRead,
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification read",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsReadAll,
}

var notificationsDeleteCmd = &cobra.Command{
	Use:     "delete ID[,ID,...]",
	Aliases: []string{"rm"},
	Short:   "Delete notifications",
	Args:    cobra.ExactArgs(1),
	RunE:    runNotificationsDelete,
}

var notificationsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every notification of every user (admin only)",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsClear,
}

func init() {
	for _, c := range []*cobra.Command{notificationsCmd, notificationsListCmd} {
		c.Flags().BoolP("unread", "u", false, "only unread notifications")
		c.Flags().IntP("limit", "n", 0, "show at most N of the newest notifications")
	}
	notificationsCmd.AddCommand(notificationsListCmd, notificationsReadCmd, notificationsReadAllCmd,
		notificationsDeleteCmd, notificationsClearCmd)
	rootCmd.AddCommand(notificationsCmd)
}

func runNotificationsList(cmd *cobra.Command, _ []string) error {
	unread, _ := cmd.Flags().GetBool("unread")
	limit, _ := cmd.Flags().GetInt("limit")

	return read(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
		items := c.Notifications(me)
		if unread {
			kept := items[:0]
			for _, n := range items {
				if !n.Read {
					kept = append(kept, n)
				}
			}
			items = kept
		}
		if limit > 0 && len(items) > limit {
			items = items[len(items)-limit:]
		}

		switch outputFormat() {
		case output.FormatJSON:
			if items == nil {
				items = []notify.Notification{}
			}
			return output.JSON(os.Stdout, items)
		case output.FormatCompact:
			output.NotificationCompact(os.Stdout, items)
			return nil
		}
		output.NotificationTable(os.Stdout, items)
		return nil
	})
}

func runNotificationsRead(cmd *cobra.Command, args []string) error {
	return notificationBatch(cmd, args[0], func(c *workflow.Controller, me employee.Employee, id string) error {
		return c.MarkNotificationRead(cmd.Context(), me, id)
	})
}

func runNotificationsDelete(cmd *cobra.Command, args []string) error {
	return notificationBatch(cmd, args[0], func(c *workflow.Controller, me employee.Employee, id string) error {
		return c.DeleteNotification(cmd.Context(), me, id)
	})
}

// notificationBatch applies fn to each id of a comma-separated list. A
// single id reports its error directly.
func notificationBatch(cmd *cobra.Command, arg string, fn func(*workflow.Controller, employee.Employee, string) error) error {
	ids, err := board.ParseRefs(arg)
	if err != nil {
		return err
	}
	apply := func(id string) error {
		return mutate(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
			return fn(c, me, id)
		})
	}
	if len(ids) > 1 {
		return runBatch(ids, apply)
	}
	if err := apply(ids[0]); err != nil {
		return err
	}
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, []output.BatchResult{output.NewBatchResult(ids[0], nil)})
	}
	output.Messagef(os.Stdout, "Done: %s", ids[0])
	return nil
}

func runNotificationsReadAll(cmd *cobra.Command, _ []string) error {
	var n int
	err := mutate(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
		var err error
		n, err = c.MarkAllNotificationsRead(cmd.Context(), me)
		return err
	})
	if err != nil {
		return err
	}
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]int{"marked": n})
	}
	output.Messagef(os.Stdout, "Marked %d notification(s) read", n)
	return nil
}

func runNotificationsClear(cmd *cobra.Command, _ []string) error {
	err := mutate(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
		return c.ClearNotifications(cmd.Context(), me)
	})
	if err != nil {
		return err
	}
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]string{"status": "cleared"})
	}
	output.Messagef(os.Stdout, "Cleared all notifications")
	return nil
}
