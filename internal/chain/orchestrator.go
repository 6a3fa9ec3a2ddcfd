// Package chain orchestrates quiz chains: fetch a question page, gather
// its materials, resolve an answer, submit it, and follow the next URL
// until the chain completes or stalls.
package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quizsolver/internal/answer"
	"quizsolver/internal/config"
	"quizsolver/internal/fetch"
	"quizsolver/internal/logging"
	"quizsolver/internal/material"
	"quizsolver/internal/sandbox"
	"quizsolver/internal/strategy"
)

// maxChainLength caps how many questions one run will follow. A chain
// longer than this almost certainly means the grader is looping us.
const maxChainLength = 50

// Strategy labels recorded per attempt.
const (
	StrategyDirect = "direct"
	StrategyCode   = "code_execution"
	StrategyManual = "manual"
)

// PageFetcher renders question pages and downloads attached files.
type PageFetcher interface {
	FetchRendered(ctx context.Context, url string) (*fetch.PageContent, error)
	DownloadFiles(ctx context.Context, urls []string) []material.Input
}

// StrategySelector picks a resolution path for one question.
type StrategySelector interface {
	Select(ctx context.Context, question string, files *material.Set) strategy.Decision
}

// AnswerSynthesizer produces direct answers and generated code.
type AnswerSynthesizer interface {
	AnswerDirectly(ctx context.Context, question string, files *material.Set) (answer.Value, error)
	GenerateCode(ctx context.Context, question string, files *material.Set) (string, error)
}

// CodeRunner executes generated code against materialized files.
type CodeRunner interface {
	Run(ctx context.Context, code string, files *material.Set) sandbox.Result
}

// Recorder persists run progress. Implementations must tolerate
// concurrent chains; failures must not propagate.
type Recorder interface {
	BeginRun(runID, initialURL string)
	FinishRun(runID, status string, questions int)
	RecordAttempt(runID, questionURL string, questionNumber, attempt int, strategy string, correct bool, reason string, elapsed time.Duration)
}

// ManualFallback is consulted after all automated attempts on a question
// fail. It returns the answer, an optional quiz-identifier URL to use in
// the submission payload instead of the page-derived one, and whether an
// answer was provided.
type ManualFallback func(questionURL string, questionNumber int) (answer.Value, string, bool)

// QuestionResult is the outcome of one question in the chain.
type QuestionResult struct {
	URL      string
	Number   int
	Correct  bool
	Skipped  bool
	Answer   answer.Value
	Attempts int
	NextURL  string
	Reason   string
}

// Result statuses for a finished chain.
const (
	StatusCompleted = "completed"
	StatusStalled   = "stalled"
	StatusFailed    = "failed"
)

// ChainResult summarizes a finished chain run.
type ChainResult struct {
	RunID     string
	Status    string
	Questions []QuestionResult
}

// Solved counts questions answered correctly.
func (r *ChainResult) Solved() int {
	n := 0
	for _, q := range r.Questions {
		if q.Correct {
			n++
		}
	}
	return n
}

// Orchestrator runs quiz chains. One orchestrator serves one run at a
// time; the server creates a fresh one per accepted request.
type Orchestrator struct {
	cfg       *config.Config
	fetcher   PageFetcher
	selector  StrategySelector
	synth     AnswerSynthesizer
	runner    CodeRunner
	submitter Submitter
	recorder  Recorder
	manual    ManualFallback
	decoder   *material.Decoder
}

// Deps are the collaborators an orchestrator is built from. Recorder
// and Manual are optional.
type Deps struct {
	Fetcher   PageFetcher
	Selector  StrategySelector
	Synth     AnswerSynthesizer
	Runner    CodeRunner
	Submitter Submitter
	Recorder  Recorder
	Manual    ManualFallback
}

// New returns an orchestrator wired from deps.
func New(cfg *config.Config, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		fetcher:   deps.Fetcher,
		selector:  deps.Selector,
		synth:     deps.Synth,
		runner:    deps.Runner,
		submitter: deps.Submitter,
		recorder:  deps.Recorder,
		manual:    deps.Manual,
		decoder:   material.NewDecoder(),
	}
}

// NewRunID returns a fresh short run identifier.
func NewRunID() string {
	return uuid.New().String()[:8]
}

// Run follows the quiz chain from startURL until it completes, stalls,
// or the context is canceled.
func (o *Orchestrator) Run(ctx context.Context, startURL string) (*ChainResult, error) {
	return o.RunAs(ctx, NewRunID(), startURL)
}

// RunAs is Run with a caller-supplied run identifier, for callers that
// need to report the identifier before the chain starts.
func (o *Orchestrator) RunAs(ctx context.Context, runID, startURL string) (*ChainResult, error) {
	rlog := logging.WithRequestID(logging.CategoryChain, runID)
	rlog.Info("chain started at %s", startURL)

	if o.recorder != nil {
		o.recorder.BeginRun(runID, startURL)
	}

	result := &ChainResult{RunID: runID, Status: StatusStalled}
	defer func() {
		if o.recorder != nil {
			o.recorder.FinishRun(runID, result.Status, len(result.Questions))
		}
		rlog.Info("chain finished: status=%s questions=%d solved=%d",
			result.Status, len(result.Questions), result.Solved())
	}()

	currentURL := startURL
	for number := 1; currentURL != ""; number++ {
		if number > maxChainLength {
			rlog.Warn("chain exceeded %d questions, stopping", maxChainLength)
			result.Status = StatusStalled
			return result, nil
		}
		if err := ctx.Err(); err != nil {
			result.Status = StatusFailed
			return result, err
		}

		qres, err := o.solveQuestion(ctx, rlog, runID, currentURL, number)
		if err != nil {
			result.Status = StatusFailed
			return result, fmt.Errorf("question %d (%s): %w", number, currentURL, err)
		}
		result.Questions = append(result.Questions, *qres)

		switch {
		case qres.Correct:
			if qres.NextURL == "" {
				rlog.Info("question %d correct, no next URL: chain complete", number)
				result.Status = StatusCompleted
				return result, nil
			}
			rlog.Info("question %d correct, following %s", number, qres.NextURL)
			currentURL = qres.NextURL

		case qres.NextURL != "" && qres.NextURL != currentURL:
			// The grader told us where the chain continues even though
			// this answer never landed. Skip forward rather than stall.
			rlog.Warn("question %d unsolved, skipping ahead to %s", number, qres.NextURL)
			result.Questions[len(result.Questions)-1].Skipped = true
			currentURL = qres.NextURL

		default:
			rlog.Warn("question %d unsolved with no way forward, chain stalled", number)
			result.Status = StatusStalled
			return result, nil
		}
	}

	result.Status = StatusCompleted
	return result, nil
}

// solveQuestion fetches one question page and works through the attempt
// budget until the grader accepts an answer or the budget is spent.
func (o *Orchestrator) solveQuestion(ctx context.Context, rlog *logging.RequestLogger, runID, url string, number int) (*QuestionResult, error) {
	started := time.Now()
	timer := logging.StartTimer(logging.CategoryChain, fmt.Sprintf("question %d", number))
	defer timer.Stop()

	res := &QuestionResult{URL: url, Number: number}
	budget := o.cfg.Solver.QuestionBudget()
	lastKnownNextURL := ""
	var submitURL, quizID string

	for attempt := 1; attempt <= o.cfg.Solver.Attempts(); attempt++ {
		if attempt > 1 {
			if time.Since(started) > budget {
				rlog.Warn("question %d budget exhausted after %d attempt(s)", number, attempt-1)
				break
			}
			select {
			case <-time.After(o.cfg.Solver.Backoff()):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		res.Attempts = attempt

		// Each attempt works from a fresh fetch so a retry never
		// reasons over stale page content.
		page, err := o.fetcher.FetchRendered(ctx, url)
		if err != nil {
			if attempt == 1 {
				return nil, fmt.Errorf("fetch page: %w", err)
			}
			rlog.Warn("question %d attempt %d refetch failed: %v", number, attempt, err)
			res.Reason = err.Error()
			break
		}
		combined := page.Combined()

		question := page.Text
		if question == "" {
			question = combined
		}

		files := o.gatherMaterials(ctx, rlog, page, combined, url)

		submitURL = fetch.ExtractSubmitURL(combined)
		if submitURL == "" {
			submitURL = o.cfg.Solver.SubmitURL
		}
		if submitURL == "" {
			return nil, fmt.Errorf("no submit endpoint on page and none configured")
		}
		quizID = fetch.ExtractQuizIdentifier(combined, url)

		label, value, err := o.resolveAnswer(ctx, rlog, question, files, attempt)
		if err != nil {
			rlog.Warn("question %d attempt %d (%s) failed: %v", number, attempt, label, err)
			o.record(runID, url, number, attempt, label, false, err.Error(), time.Since(started))
			continue
		}

		verdict, err := o.submitter.Submit(ctx, submitURL, quizID, value)
		if err != nil {
			rlog.Warn("question %d attempt %d submission failed: %v", number, attempt, err)
			o.record(runID, url, number, attempt, label, false, err.Error(), time.Since(started))
			continue
		}
		o.record(runID, url, number, attempt, label, verdict.Correct, verdict.Reason, time.Since(started))

		if verdict.URL != "" {
			lastKnownNextURL = fetch.ResolveURL(verdict.URL, url)
		}
		if verdict.Correct {
			res.Correct = true
			res.Answer = value
			res.NextURL = lastKnownNextURL
			return res, nil
		}
		rlog.Info("question %d attempt %d rejected: %s", number, attempt, verdict.Reason)
		res.Reason = verdict.Reason
	}

	if o.manual != nil && submitURL != "" {
		if value, overrideID, ok := o.manual(url, number); ok {
			id := quizID
			if overrideID != "" {
				id = overrideID
			}
			rlog.Info("question %d using manual answer for %s", number, id)
			verdict, err := o.submitter.Submit(ctx, submitURL, id, value)
			if err == nil {
				o.record(runID, url, number, res.Attempts+1, StrategyManual, verdict.Correct, verdict.Reason, time.Since(started))
				if verdict.URL != "" {
					lastKnownNextURL = fetch.ResolveURL(verdict.URL, url)
				}
				if verdict.Correct {
					res.Correct = true
					res.Answer = value
					res.NextURL = lastKnownNextURL
					return res, nil
				}
				res.Reason = verdict.Reason
			}
		}
	}

	res.NextURL = lastKnownNextURL
	return res, nil
}

// resolveAnswer produces an answer for one attempt. Early attempts let
// the strategy selector choose; later attempts force code generation.
// Code paths that fail fall back to a direct answer so an attempt always
// produces something submittable when the LLM is reachable.
func (o *Orchestrator) resolveAnswer(ctx context.Context, rlog *logging.RequestLogger, question string, files *material.Set, attempt int) (string, answer.Value, error) {
	if attempt >= o.cfg.Solver.CodeEscalationAttempt() {
		rlog.Debug("attempt %d: forcing code generation", attempt)
		if value, ok := o.runGenerated(ctx, rlog, question, files); ok {
			return StrategyCode, value, nil
		}
		value, err := o.synth.AnswerDirectly(ctx, question, files)
		return StrategyDirect, value, err
	}

	decision := o.selector.Select(ctx, question, files)
	if decision.Kind == strategy.CodeExecution {
		result := o.runner.Run(ctx, decision.Code, files)
		if result.Succeeded {
			return StrategyCode, result.Value, nil
		}
		rlog.Warn("strategy code failed, falling back to direct: %s", result.ErrorMessage)
	}

	value, err := o.synth.AnswerDirectly(ctx, question, files)
	return StrategyDirect, value, err
}

// runGenerated asks for fresh code and executes it.
func (o *Orchestrator) runGenerated(ctx context.Context, rlog *logging.RequestLogger, question string, files *material.Set) (answer.Value, bool) {
	code, err := o.synth.GenerateCode(ctx, question, files)
	if err != nil {
		rlog.Warn("code generation failed: %v", err)
		return answer.Value{}, false
	}
	result := o.runner.Run(ctx, code, files)
	if !result.Succeeded {
		rlog.Warn("generated code failed: %s", result.ErrorMessage)
		return answer.Value{}, false
	}
	return result.Value, true
}

// gatherMaterials downloads and decodes the page's attached files, then
// folds in images harvested from the rendered page.
func (o *Orchestrator) gatherMaterials(ctx context.Context, rlog *logging.RequestLogger, page *fetch.PageContent, combined, url string) *material.Set {
	fileURLs := fetch.ExtractFileURLs(combined, url)
	if len(fileURLs) > 0 {
		rlog.Info("found %d file URL(s) on page", len(fileURLs))
	}

	inputs := o.fetcher.DownloadFiles(ctx, fileURLs)
	files := o.decoder.DecodeAll(inputs)

	for i, img := range page.Images {
		key := fmt.Sprintf("image_%d", i)
		files.Add(key, &material.Material{
			Kind: material.KindImage,
			Media: &material.Media{
				DataURI:   img.DataURI,
				MimeType:  img.MimeType,
				AltText:   img.AltText,
				SizeBytes: img.SizeBytes,
			},
		})
	}
	return files
}

func (o *Orchestrator) record(runID, url string, number, attempt int, label string, correct bool, reason string, elapsed time.Duration) {
	if o.recorder != nil {
		o.recorder.RecordAttempt(runID, url, number, attempt, label, correct, reason, elapsed)
	}
}
