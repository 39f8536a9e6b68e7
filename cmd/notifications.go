package cmd

import (
	"fmt"
	"os"

	"github.com/marcus/soilnet/internal/input"
	"github.com/marcus/soilnet/internal/output"
	"github.com/spf13/cobra"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"inbox"},
	Short:   "Read your notifications",
	GroupID: "account",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient(true)
		if err != nil {
			return err
		}
		since, err := sinceFlag(cmd)
		if err != nil {
			return err
		}
		unread, _ := cmd.Flags().GetBool("unread")
		inbox, err := c.ListNotifications(cmdContext(cmd), unread)
		if err != nil {
			return err
		}
		inbox.Data = notificationsSince(inbox.Data, since)
		if jsonOut {
			return output.JSON(inbox)
		}
		if len(inbox.Data) == 0 {
			fmt.Println("No notifications.")
			return nil
		}
		for i := range inbox.Data {
			fmt.Println(output.FormatNotification(&inbox.Data[i]))
		}
		fmt.Printf("\n%d unread\n", inbox.Unread)
		return nil
	},
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read [notification-id...]",
	Short: "Mark notifications as read (all with --all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient(true)
		if err != nil {
			return err
		}
		all, _ := cmd.Flags().GetBool("all")
		ctx := cmdContext(cmd)
		if all {
			n, err := c.MarkAllNotificationsRead(ctx)
			if err != nil {
				return err
			}
			output.Success("Marked %d notifications as read", n)
			return nil
		}
		ids, err := input.ExpandArgs(args, os.Stdin)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("give notification ids or --all")
		}
		for _, id := range ids {
			if err := c.MarkNotificationRead(ctx, id); err != nil {
				return fmt.Errorf("mark %s read: %w", id, err)
			}
		}
		output.Success("Marked %d notifications as read", len(ids))
		return nil
	},
}

var notificationsRmCmd = &cobra.Command{
	Use:     "rm <notification-id>...",
	Aliases: []string{"delete"},
	Short:   "Delete notifications",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient(true)
		if err != nil {
			return err
		}
		ids, err := input.ExpandArgs(args, os.Stdin)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := c.DeleteNotification(cmdContext(cmd), id); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
		}
		output.Success("Deleted %d notifications", len(ids))
		return nil
	},
}

func init() {
	notificationsCmd.Flags().BoolP("unread", "u", false, "only unread notifications")
	notificationsCmd.Flags().String("since", "", sinceUsage)
	notificationsReadCmd.Flags().Bool("all", false, "mark every notification as read")
	notificationsCmd.AddCommand(notificationsReadCmd, notificationsRmCmd)
	rootCmd.AddCommand(notificationsCmd)
}
