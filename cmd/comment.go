package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/opsdesk/internal/comment"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
)

var commentCmd = &cobra.Command{
	Use:     "comment",
	Aliases: []string{"comments"},
	Short:   "Discuss a task in comment threads",
	Long: `Adds, edits, deletes and lists task comments. Mention colleagues with
@first.last (or a unique first name) to notify them.`,
}

var commentAddCmd = &cobra.Command{
	Use:   "add TASK TEXT...",
	Short: "Comment on a task",
	Args:  cobra.MinimumNArgs(2), //nolint:mnd // task and text
	RunE:  runCommentAdd,
}

var commentEditCmd = &cobra.Command{
	Use:   "edit COMMENT TEXT...",
	Short: "Replace the text of your comment",
	Args:  cobra.MinimumNArgs(2), //nolint:mnd // comment and text
	RunE:  runCommentEdit,
}

var commentDeleteCmd = &cobra.Command{
	Use:     "delete COMMENT",
	Aliases: []string{"rm"},
	Short:   "Delete your comment and its replies",
	Args:    cobra.ExactArgs(1),
	RunE:    runCommentDelete,
}

var commentListCmd = &cobra.Command{
	Use:     "list TASK",
	Aliases: []string{"ls"},
	Short:   "List the comment threads of a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runCommentList,
}

func init() {
	commentAddCmd.Flags().String("reply-to", "", "comment id to reply to")
	commentCmd.AddCommand(commentAddCmd, commentEditCmd, commentDeleteCmd, commentListCmd)
	rootCmd.AddCommand(commentCmd)
}

func runCommentAdd(cmd *cobra.Command, args []string) error {
	parent, _ := cmd.Flags().GetString("reply-to")
	text := strings.Join(args[1:], " ")

	var added comment.Comment
	err := mutate(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
		var err error
		added, err = c.AddComment(cmd.Context(), me, args[0], text, parent)
		return err
	})
	if err != nil {
		return err
	}
	return outputComment("Added", added)
}

func runCommentEdit(cmd *cobra.Command, args []string) error {
	text := strings.Join(args[1:], " ")

	var edited comment.Comment
	err := mutate(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
		var err error
		edited, err = c.EditComment(cmd.Context(), me, args[0], text)
		return err
	})
	if err != nil {
		return err
	}
	return outputComment("Edited", edited)
}

func runCommentDelete(cmd *cobra.Command, args []string) error {
	err := mutate(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
		return c.DeleteComment(cmd.Context(), me, args[0])
	})
	if err != nil {
		return err
	}
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]any{"status": "deleted", "id": args[0]})
	}
	output.Messagef(os.Stdout, "Deleted comment %s", args[0])
	return nil
}

func runCommentList(cmd *cobra.Command, args []string) error {
	return read(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
		threads, err := c.Threads(me, args[0])
		if err != nil {
			return err
		}
		switch outputFormat() {
		case output.FormatJSON:
			if threads == nil {
				threads = []comment.Thread{}
			}
			return output.JSON(os.Stdout, threads)
		case output.FormatCompact:
			for _, th := range threads {
				printCommentLine(th.Comment, "")
				for _, r := range th.Replies {
					printCommentLine(r, "  ")
				}
			}
			return nil
		}
		if len(threads) == 0 {
			fmt.Fprintln(os.Stderr, "No comments.")
			return nil
		}
		output.Threads(os.Stdout, threads, names(c))
		return nil
	})
}

func printCommentLine(cm comment.Comment, indent string) {
	fmt.Fprintf(os.Stdout, "%s%s %s: %s\n", indent, task.ShortID(cm.ID), cm.UserID,
		strings.ReplaceAll(cm.Content, "\n", " "))
}

func outputComment(verb string, cm comment.Comment) error {
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, cm)
	}
	output.Messagef(os.Stdout, "%s comment %s on task %s", verb, task.ShortID(cm.ID), task.ShortID(cm.TaskID))
	if len(cm.Mentions) > 0 {
		output.Messagef(os.Stdout, "  Mentions: @%s", strings.Join(cm.Mentions, ", @"))
	}
	return nil
}
