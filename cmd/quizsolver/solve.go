package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"quizsolver/internal/answer"
	"quizsolver/internal/chain"
	"quizsolver/internal/fetch"
	"quizsolver/internal/llm"
	"quizsolver/internal/sandbox"
	"quizsolver/internal/store"
	"quizsolver/internal/strategy"
	"quizsolver/internal/synth"
)

var solveCmd = &cobra.Command{
	Use:   "solve <url>",
	Short: "Solve a quiz chain starting from the given URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runSolve,
}

func init() {
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	startURL := args[0]

	var runs *store.RunStore
	if cfg.Store.Enabled {
		var err error
		runs, err = store.Open(cfg.Store.DatabasePath)
		if err != nil {
			log.Warnw("run history disabled", "error", err)
		} else {
			defer runs.Close()
		}
	}

	client, err := llm.NewFromConfig(cfg.LLM)
	if err != nil {
		return err
	}

	fetcher := fetch.NewFetcher(cfg.Browser, nil)
	defer fetcher.Close()

	runner, err := sandbox.NewRunner(cfg.Solver.Python(), cfg.Solver.ExecutionDeadline())
	if err != nil {
		return err
	}
	defer runner.Close()

	var manual chain.ManualFallback
	if cfg.Solver.ManualFallback {
		manual = promptForAnswer
	}

	orch := chain.New(cfg, chain.Deps{
		Fetcher:   fetcher,
		Selector:  strategy.NewSelector(client),
		Synth:     synth.New(client, cfg.Operator.Email),
		Runner:    runner,
		Submitter: chain.NewHTTPSubmitter(cfg.Operator.Email, cfg.Operator.Secret, nil),
		Recorder:  runs,
		Manual:    manual,
	})

	result, err := orch.Run(cmd.Context(), startURL)
	if result != nil {
		printChainResult(result)
	}
	return err
}

// promptForAnswer is the interactive escape hatch: when every automated
// attempt on a question fails, the operator can type an answer or press
// enter to give up on the question. A second prompt lets the operator
// supply the quiz-identifier URL for the submission payload when the
// page-derived one is wrong.
func promptForAnswer(questionURL string, number int) (answer.Value, string, bool) {
	in := bufio.NewReader(os.Stdin)

	fmt.Fprintf(os.Stderr, "\nQuestion %d unsolved: %s\n", number, questionURL)
	fmt.Fprint(os.Stderr, "Enter an answer to submit manually, or press enter to skip: ")
	line, err := in.ReadString('\n')
	if err != nil {
		return answer.Value{}, "", false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return answer.Value{}, "", false
	}

	fmt.Fprint(os.Stderr, "Quiz URL for the submission (enter to use the page's): ")
	override, err := in.ReadString('\n')
	if err != nil {
		override = ""
	}
	return answer.Extract(line), strings.TrimSpace(override), true
}

func printChainResult(r *chain.ChainResult) {
	fmt.Printf("\nrun %s: %s (%d/%d solved)\n", r.RunID, r.Status, r.Solved(), len(r.Questions))
	for _, q := range r.Questions {
		mark := "✗"
		switch {
		case q.Correct:
			mark = "✓"
		case q.Skipped:
			mark = "→"
		}
		fmt.Printf("  %s question %d  %s", mark, q.Number, q.URL)
		if q.Correct {
			fmt.Printf("  answer=%s attempts=%d", q.Answer.String(), q.Attempts)
		} else if q.Reason != "" {
			fmt.Printf("  (%s)", q.Reason)
		}
		fmt.Println()
	}
}
