package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"quizsolver/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recent chain runs, or the attempts of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	runs, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return err
	}
	defer runs.Close()

	if len(args) == 1 {
		return printAttempts(runs, args[0])
	}

	summaries, err := runs.RecentRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	for _, r := range summaries {
		fmt.Printf("%s  %-9s  %2d questions  %s  %s\n",
			r.RunID, r.Status, r.Questions,
			r.StartedAt.Format("2006-01-02 15:04:05"), r.InitialURL)
	}
	return nil
}

func printAttempts(runs *store.RunStore, runID string) error {
	attempts, err := runs.RunAttempts(runID)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Printf("no attempts recorded for run %s\n", runID)
		return nil
	}
	for _, a := range attempts {
		verdict := "incorrect"
		if a.Correct {
			verdict = "correct"
		}
		fmt.Printf("q%-2d attempt %d  %-14s  %-9s  %5dms  %s\n",
			a.QuestionNumber, a.Attempt, a.Strategy, verdict, a.ElapsedMs, a.QuestionURL)
		if a.Reason != "" && !a.Correct {
			fmt.Printf("    reason: %s\n", a.Reason)
		}
	}
	return nil
}
