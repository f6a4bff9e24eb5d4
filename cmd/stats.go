package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/gamify"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
)

var statsCmd = &cobra.Command{
	Use:   "stats [EMPLOYEE]",
	Short: "Show points, level and badges",
	Long:  `Shows the gamification stats of an employee, the current user by default.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStats,
}

var leaderboardCmd = &cobra.Command{
	Use:     "leaderboard",
	Aliases: []string{"top"},
	Short:   "Rank employees by points",
	Args:    cobra.NoArgs,
	RunE:    runLeaderboard,
}

func init() {
	leaderboardCmd.Flags().IntP("limit", "n", 10, "number of places to show (0 for all)") //nolint:mnd // top ten
	rootCmd.AddCommand(statsCmd, leaderboardCmd)
}

// statsView is the JSON shape of stats.
type statsView struct {
	gamify.Stats
	Rank int `json:"rank"`
}

func runStats(cmd *cobra.Command, args []string) error {
	return read(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
		who := me
		if len(args) > 0 {
			var err error
			if who, err = c.User(args[0]); err != nil {
				return err
			}
		}

		st, rank, ok := c.Stats(who.ID)
		if !ok {
			st = gamify.Stats{UserID: who.ID, Level: 1, Badges: []string{}}
		}

		switch outputFormat() {
		case output.FormatJSON:
			return output.JSON(os.Stdout, statsView{Stats: st, Rank: rank})
		case output.FormatCompact:
			fmt.Fprintf(os.Stdout, "%s level:%d points:%d rank:%d badges:%d\n",
				who.ID, st.Level, st.TotalPoints, rank, len(st.Badges))
			return nil
		}
		output.StatsDetail(os.Stdout, st, rank, who.Name())
		return nil
	})
}

func runLeaderboard(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	return read(cmd.Context(), func(c *workflow.Controller, _ employee.Employee) error {
		ranking := c.Leaderboard()
		if limit > 0 && len(ranking) > limit {
			ranking = ranking[:limit]
		}

		switch outputFormat() {
		case output.FormatJSON:
			if ranking == nil {
				ranking = []gamify.Stats{}
			}
			return output.JSON(os.Stdout, ranking)
		case output.FormatCompact:
			for i, st := range ranking {
				fmt.Fprintf(os.Stdout, "%d %s %d\n", i+1, st.UserID, st.TotalPoints)
			}
			return nil
		}
		output.LeaderboardTable(os.Stdout, ranking, names(c))
		return nil
	})
}
