// Package quizdemo serves a local six-question practice chain for
// end-to-end exercising of the solver: JS-rendered question pages,
// downloadable data files, and a tolerant grading endpoint that hands
// out the next question URL on success.
package quizdemo

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"quizsolver/internal/logging"
)

// question is one entry in the demo chain.
type question struct {
	body     string // HTML injected into the page after base64 decode
	expected interface{}
}

// numericTolerance for grading float answers.
const numericTolerance = 0.01

// Demo is the practice chain server.
type Demo struct {
	questions []question
	files     map[string]dataFile
}

type dataFile struct {
	contentType string
	body        string
}

// New builds the demo with its fixed question set.
func New() *Demo {
	return &Demo{questions: demoQuestions, files: demoFiles}
}

// Handler returns the route mux.
func (d *Demo) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/quiz/", d.handleQuiz)
	mux.HandleFunc("/data/", d.handleData)
	mux.HandleFunc("/submit", d.handleSubmit)
	mux.HandleFunc("/", d.handleIndex)
	return mux
}

func (d *Demo) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	base := baseURL(r)
	fmt.Fprintf(w, "Practice quiz chain. Start at %s/quiz/1\n", base)
}

// handleQuiz renders a question page. The question body is shipped
// base64-encoded and injected by script, so the text only exists after
// client-side rendering, the same way real quiz pages behave.
func (d *Demo) handleQuiz(w http.ResponseWriter, r *http.Request) {
	n, ok := d.questionNumber(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	base := baseURL(r)
	body := d.questions[n-1].body
	body = strings.ReplaceAll(body, "{{base}}", base)
	body += fmt.Sprintf(`<p>Post your answer as JSON to <span id="submit-to">%s/submit</span></p>`, base)

	encoded := base64.StdEncoding.EncodeToString([]byte(body))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Question %d</title></head>
<body>
<div id="question"></div>
<script>
document.getElementById("question").innerHTML = atob(%q);
</script>
</body>
</html>`, n, encoded)
}

func (d *Demo) handleData(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/data/")
	f, ok := d.files[name]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", f.contentType)
	fmt.Fprint(w, f.body)
}

// submission mirrors the solver's grading payload.
type submission struct {
	Email  string      `json:"email"`
	Secret string      `json:"secret"`
	URL    string      `json:"url"`
	Answer interface{} `json:"answer"`
}

func (d *Demo) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "POST required"})
		return
	}
	var sub submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid JSON payload"})
		return
	}
	if sub.Email == "" || sub.Secret == "" {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "email and secret required"})
		return
	}

	n, ok := d.questionNumber(sub.URL)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "unknown quiz url"})
		return
	}

	correct := matches(d.questions[n-1].expected, sub.Answer)
	logging.Server("demo grade: question %d answer %v correct=%v", n, sub.Answer, correct)

	resp := map[string]interface{}{"correct": correct}
	switch {
	case correct && n < len(d.questions):
		resp["url"] = fmt.Sprintf("%s/quiz/%d", baseURL(r), n+1)
	case correct:
		resp["message"] = "chain complete"
	default:
		resp["reason"] = fmt.Sprintf("incorrect answer for question %d", n)
	}
	writeJSON(w, http.StatusOK, resp)
}

// questionNumber pulls the 1-based question index from a /quiz/<n> path
// or a full URL ending in one.
func (d *Demo) questionNumber(path string) (int, bool) {
	idx := strings.LastIndex(path, "/quiz/")
	if idx < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(path[idx+len("/quiz/"):], "/"))
	if err != nil || n < 1 || n > len(d.questions) {
		return 0, false
	}
	return n, true
}

// matches grades an answer against the expected value: numbers within
// tolerance, strings case-insensitively, everything else by rendering
// both sides to a comparable form first.
func matches(expected, got interface{}) bool {
	switch want := expected.(type) {
	case float64:
		v, ok := toFloat(got)
		return ok && math.Abs(v-want) <= numericTolerance
	case int:
		v, ok := toFloat(got)
		return ok && math.Abs(v-float64(want)) <= numericTolerance
	case string:
		s, ok := got.(string)
		return ok && strings.EqualFold(strings.TrimSpace(s), want)
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
