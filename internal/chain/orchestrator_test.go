package chain

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"quizsolver/internal/answer"
	"quizsolver/internal/config"
	"quizsolver/internal/fetch"
	"quizsolver/internal/material"
	"quizsolver/internal/sandbox"
	"quizsolver/internal/strategy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go.opencensus.io starts a global stats worker in package init
		// (pulled in transitively); it is not stoppable from tests.
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

func testChainConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Operator.Email = "op@example.com"
	cfg.Operator.Secret = "s3cret"
	cfg.Solver.RetryBackoff = "1ms"
	cfg.Solver.QuestionTimeout = "30s"
	return cfg
}

type fakeFetcher struct {
	pages   map[string]*fetch.PageContent
	files   map[string]material.Input
	fetches map[string]int
}

func (f *fakeFetcher) FetchRendered(ctx context.Context, url string) (*fetch.PageContent, error) {
	if f.fetches == nil {
		f.fetches = make(map[string]int)
	}
	f.fetches[url]++
	p, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("no such page: %s", url)
	}
	return p, nil
}

func (f *fakeFetcher) DownloadFiles(ctx context.Context, urls []string) []material.Input {
	var out []material.Input
	for _, u := range urls {
		if in, ok := f.files[u]; ok {
			out = append(out, in)
		}
	}
	return out
}

type fakeSelector struct {
	decision strategy.Decision
}

func (s *fakeSelector) Select(ctx context.Context, question string, files *material.Set) strategy.Decision {
	return s.decision
}

type fakeSynth struct {
	directValue   answer.Value
	directErr     error
	code          string
	codeErr       error
	directCalls   int
	generateCalls int
}

func (s *fakeSynth) AnswerDirectly(ctx context.Context, question string, files *material.Set) (answer.Value, error) {
	s.directCalls++
	return s.directValue, s.directErr
}

func (s *fakeSynth) GenerateCode(ctx context.Context, question string, files *material.Set) (string, error) {
	s.generateCalls++
	return s.code, s.codeErr
}

type fakeRunner struct {
	result sandbox.Result
	ran    []string
}

func (r *fakeRunner) Run(ctx context.Context, code string, files *material.Set) sandbox.Result {
	r.ran = append(r.ran, code)
	return r.result
}

type recordedSubmission struct {
	quizURL string
	value   answer.Value
}

// scriptedSubmitter pops one verdict per submission, in order.
type scriptedSubmitter struct {
	verdicts    []*SubmissionResponse
	submissions []recordedSubmission
}

func (s *scriptedSubmitter) Submit(ctx context.Context, submitURL, quizURL string, ans answer.Value) (*SubmissionResponse, error) {
	s.submissions = append(s.submissions, recordedSubmission{quizURL: quizURL, value: ans})
	if len(s.verdicts) == 0 {
		return &SubmissionResponse{Correct: false, Reason: "no verdict scripted"}, nil
	}
	v := s.verdicts[0]
	s.verdicts = s.verdicts[1:]
	return v, nil
}

type memoryRecorder struct {
	mu       sync.Mutex
	began    []string
	finished map[string]string
	attempts []string
}

func (r *memoryRecorder) BeginRun(runID, initialURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.began = append(r.began, runID)
}

func (r *memoryRecorder) FinishRun(runID, status string, questions int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished == nil {
		r.finished = make(map[string]string)
	}
	r.finished[runID] = status
}

func (r *memoryRecorder) RecordAttempt(runID, questionURL string, questionNumber, attempt int, strategy string, correct bool, reason string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, fmt.Sprintf("q%d/a%d/%s/%v", questionNumber, attempt, strategy, correct))
}

func questionPage(text string) *fetch.PageContent {
	return &fetch.PageContent{
		Text: text + "\nPost your answer to http://grader.test/submit",
		HTML: "<html><body>" + text + "</body></html>",
	}
}

func TestChainFollowsNextURLToCompletion(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*fetch.PageContent{
		"http://quiz.test/q/1": questionPage("What is 2+2?"),
		"http://quiz.test/q/2": questionPage("What is the capital of France?"),
	}}
	synth := &fakeSynth{directValue: answer.Int(4)}
	submitter := &scriptedSubmitter{verdicts: []*SubmissionResponse{
		{Correct: true, URL: "http://quiz.test/q/2"},
		{Correct: true, Message: "chain complete"},
	}}
	recorder := &memoryRecorder{}

	orch := New(testChainConfig(), Deps{
		Fetcher:   fetcher,
		Selector:  &fakeSelector{decision: strategy.Decision{Kind: strategy.Direct}},
		Synth:     synth,
		Runner:    &fakeRunner{},
		Submitter: submitter,
		Recorder:  recorder,
	})

	result, err := orch.Run(context.Background(), "http://quiz.test/q/1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 2, result.Solved())
	require.Len(t, result.Questions, 2)
	assert.Equal(t, "http://quiz.test/q/1", result.Questions[0].URL)
	assert.Equal(t, "http://quiz.test/q/2", result.Questions[1].URL)

	// Both submissions carried the fetched URL as quiz identifier
	require.Len(t, submitter.submissions, 2)
	assert.Equal(t, "http://quiz.test/q/1", submitter.submissions[0].quizURL)

	assert.Equal(t, []string{result.RunID}, recorder.began)
	assert.Equal(t, StatusCompleted, recorder.finished[result.RunID])
}

func TestChainEscalatesToCodeOnSecondAttempt(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*fetch.PageContent{
		"http://quiz.test/q/1": questionPage("Sum the sales column"),
	}}
	synth := &fakeSynth{directValue: answer.Int(999), code: "answer = 15000"}
	runner := &fakeRunner{result: sandbox.Result{Succeeded: true, Value: answer.Int(15000)}}
	submitter := &scriptedSubmitter{verdicts: []*SubmissionResponse{
		{Correct: false, Reason: "wrong"},
		{Correct: true},
	}}
	recorder := &memoryRecorder{}

	orch := New(testChainConfig(), Deps{
		Fetcher:   fetcher,
		Selector:  &fakeSelector{decision: strategy.Decision{Kind: strategy.Direct}},
		Synth:     synth,
		Runner:    runner,
		Submitter: submitter,
		Recorder:  recorder,
	})

	result, err := orch.Run(context.Background(), "http://quiz.test/q/1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	require.Len(t, result.Questions, 1)
	assert.True(t, result.Questions[0].Correct)
	assert.Equal(t, 2, result.Questions[0].Attempts)

	// Attempt 1 went direct, attempt 2 forced code generation
	assert.Equal(t, 1, synth.directCalls)
	assert.Equal(t, 1, synth.generateCalls)
	assert.Equal(t, []string{"answer = 15000"}, runner.ran)
	assert.Equal(t, []string{"q1/a1/direct/false", "q1/a2/code_execution/true"}, recorder.attempts)

	n, _ := submitter.submissions[1].value.AsInt()
	assert.Equal(t, int64(15000), n)
}

func TestChainSkipsAheadWhenGraderRevealsNextURL(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*fetch.PageContent{
		"http://quiz.test/q/1": questionPage("Unsolvable"),
		"http://quiz.test/q/2": questionPage("Easy one"),
	}}
	synth := &fakeSynth{directValue: answer.String("guess"), code: "answer = 'guess'"}
	runner := &fakeRunner{result: sandbox.Result{Succeeded: true, Value: answer.String("guess")}}
	submitter := &scriptedSubmitter{verdicts: []*SubmissionResponse{
		{Correct: false, Reason: "wrong", URL: "http://quiz.test/q/2"},
		{Correct: false, Reason: "still wrong", URL: "http://quiz.test/q/2"},
		{Correct: true},
	}}

	orch := New(testChainConfig(), Deps{
		Fetcher:   fetcher,
		Selector:  &fakeSelector{decision: strategy.Decision{Kind: strategy.Direct}},
		Synth:     synth,
		Runner:    runner,
		Submitter: submitter,
	})

	result, err := orch.Run(context.Background(), "http://quiz.test/q/1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	require.Len(t, result.Questions, 2)
	assert.True(t, result.Questions[0].Skipped)
	assert.False(t, result.Questions[0].Correct)
	assert.True(t, result.Questions[1].Correct)
	assert.Equal(t, 1, result.Solved())
}

func TestChainStallsWithNoWayForward(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*fetch.PageContent{
		"http://quiz.test/q/1": questionPage("Unsolvable"),
	}}
	synth := &fakeSynth{directValue: answer.String("guess"), code: "answer = 0"}
	runner := &fakeRunner{result: sandbox.Result{Succeeded: true, Value: answer.Int(0)}}
	submitter := &scriptedSubmitter{} // every verdict: incorrect, no URL

	orch := New(testChainConfig(), Deps{
		Fetcher:   fetcher,
		Selector:  &fakeSelector{decision: strategy.Decision{Kind: strategy.Direct}},
		Synth:     synth,
		Runner:    runner,
		Submitter: submitter,
	})

	result, err := orch.Run(context.Background(), "http://quiz.test/q/1")
	require.NoError(t, err)
	assert.Equal(t, StatusStalled, result.Status)
	assert.Equal(t, 0, result.Solved())
}

func TestChainCodeFailureFallsBackToDirect(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*fetch.PageContent{
		"http://quiz.test/q/1": questionPage("Compute something"),
	}}
	synth := &fakeSynth{directValue: answer.Int(7)}
	runner := &fakeRunner{result: sandbox.Result{ErrorMessage: "Execution failed: boom"}}
	submitter := &scriptedSubmitter{verdicts: []*SubmissionResponse{{Correct: true}}}

	orch := New(testChainConfig(), Deps{
		Fetcher:  fetcher,
		Selector: &fakeSelector{decision: strategy.Decision{Kind: strategy.CodeExecution, Code: "broken"}},
		Synth:    synth, Runner: runner, Submitter: submitter,
	})

	result, err := orch.Run(context.Background(), "http://quiz.test/q/1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 1, synth.directCalls, "failed code must fall back to a direct answer")

	n, _ := submitter.submissions[0].value.AsInt()
	assert.Equal(t, int64(7), n)
}

func TestChainManualFallback(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*fetch.PageContent{
		"http://quiz.test/q/1": questionPage("Only a human knows"),
	}}
	synth := &fakeSynth{directValue: answer.String("wrong"), code: "answer = 'wrong'"}
	runner := &fakeRunner{result: sandbox.Result{Succeeded: true, Value: answer.String("wrong")}}
	submitter := &scriptedSubmitter{verdicts: []*SubmissionResponse{
		{Correct: false, Reason: "nope"},
		{Correct: false, Reason: "nope"},
		{Correct: true},
	}}

	manualAsked := 0
	orch := New(testChainConfig(), Deps{
		Fetcher:   fetcher,
		Selector:  &fakeSelector{decision: strategy.Decision{Kind: strategy.Direct}},
		Synth:     synth,
		Runner:    runner,
		Submitter: submitter,
		Manual: func(questionURL string, number int) (answer.Value, string, bool) {
			manualAsked++
			return answer.String("dataquest2024"), "", true
		},
	})

	result, err := orch.Run(context.Background(), "http://quiz.test/q/1")
	require.NoError(t, err)
	assert.Equal(t, 1, manualAsked)
	assert.Equal(t, StatusCompleted, result.Status)
	require.Len(t, result.Questions, 1)
	assert.True(t, result.Questions[0].Correct)

	s, _ := submitter.submissions[2].value.AsString()
	assert.Equal(t, "dataquest2024", s)
}

func TestChainRefetchesPageEachAttempt(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*fetch.PageContent{
		"http://quiz.test/q/1": questionPage("Hard one"),
	}}
	synth := &fakeSynth{directValue: answer.Int(1), code: "answer = 1"}
	runner := &fakeRunner{result: sandbox.Result{Succeeded: true, Value: answer.Int(1)}}
	submitter := &scriptedSubmitter{} // every verdict: incorrect, no URL

	orch := New(testChainConfig(), Deps{
		Fetcher:   fetcher,
		Selector:  &fakeSelector{decision: strategy.Decision{Kind: strategy.Direct}},
		Synth:     synth,
		Runner:    runner,
		Submitter: submitter,
	})

	result, err := orch.Run(context.Background(), "http://quiz.test/q/1")
	require.NoError(t, err)
	require.Len(t, result.Questions, 1)
	attempts := result.Questions[0].Attempts
	require.Greater(t, attempts, 1, "test needs a retry to be meaningful")
	assert.Equal(t, attempts, fetcher.fetches["http://quiz.test/q/1"],
		"each attempt must work from a fresh fetch, never a stale page")
}

func TestChainManualFallbackOverridesQuizIdentifier(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*fetch.PageContent{
		"http://quiz.test/q/1": questionPage("Only a human knows"),
	}}
	synth := &fakeSynth{directValue: answer.String("wrong"), code: "answer = 'wrong'"}
	runner := &fakeRunner{result: sandbox.Result{Succeeded: true, Value: answer.String("wrong")}}
	submitter := &scriptedSubmitter{verdicts: []*SubmissionResponse{
		{Correct: false, Reason: "nope"},
		{Correct: false, Reason: "nope"},
		{Correct: true},
	}}

	orch := New(testChainConfig(), Deps{
		Fetcher:   fetcher,
		Selector:  &fakeSelector{decision: strategy.Decision{Kind: strategy.Direct}},
		Synth:     synth,
		Runner:    runner,
		Submitter: submitter,
		Manual: func(questionURL string, number int) (answer.Value, string, bool) {
			return answer.String("42"), "http://quiz.test/special/q1", true
		},
	})

	result, err := orch.Run(context.Background(), "http://quiz.test/q/1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)

	require.Len(t, submitter.submissions, 3)
	assert.Equal(t, "http://quiz.test/q/1", submitter.submissions[0].quizURL)
	assert.Equal(t, "http://quiz.test/special/q1", submitter.submissions[2].quizURL,
		"operator-supplied quiz URL must reach the submission payload")
}

func TestChainFailsWhenPageUnreachable(t *testing.T) {
	orch := New(testChainConfig(), Deps{
		Fetcher:   &fakeFetcher{pages: map[string]*fetch.PageContent{}},
		Selector:  &fakeSelector{},
		Synth:     &fakeSynth{},
		Runner:    &fakeRunner{},
		Submitter: &scriptedSubmitter{},
	})

	result, err := orch.Run(context.Background(), "http://quiz.test/gone")
	require.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
}

func TestChainDownloadsPageFiles(t *testing.T) {
	page := &fetch.PageContent{
		Text: "Sum the sales column.\nPost your answer to http://grader.test/submit",
		HTML: `<html><body><a href="http://quiz.test/data/sales.csv">data</a></body></html>`,
	}
	fetcher := &fakeFetcher{
		pages: map[string]*fetch.PageContent{"http://quiz.test/q/1": page},
		files: map[string]material.Input{
			"http://quiz.test/data/sales.csv": {
				Key:         "http://quiz.test/data/sales.csv",
				Data:        []byte("region,sales\nnorth,1000\nsouth,2000\n"),
				ContentType: "text/csv",
			},
		},
	}

	var seenFiles int
	selector := selectorFunc(func(ctx context.Context, question string, files *material.Set) strategy.Decision {
		seenFiles = files.Len()
		return strategy.Decision{Kind: strategy.Direct}
	})
	synth := &fakeSynth{directValue: answer.Int(3000)}
	submitter := &scriptedSubmitter{verdicts: []*SubmissionResponse{{Correct: true}}}

	orch := New(testChainConfig(), Deps{
		Fetcher: fetcher, Selector: selector, Synth: synth,
		Runner: &fakeRunner{}, Submitter: submitter,
	})

	result, err := orch.Run(context.Background(), "http://quiz.test/q/1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 1, seenFiles, "the CSV from the page must reach the strategy selector")
}

type selectorFunc func(ctx context.Context, question string, files *material.Set) strategy.Decision

func (f selectorFunc) Select(ctx context.Context, question string, files *material.Set) strategy.Decision {
	return f(ctx, question, files)
}
