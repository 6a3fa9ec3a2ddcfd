package sandbox

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"quizsolver/internal/answer"
	"quizsolver/internal/logging"
)

// resultBlock is the JSON payload between the stdout markers.
type resultBlock struct {
	Result     json.RawMessage `json:"result"`
	OutputFile string          `json:"output_file"`
}

// parseOutput extracts the marker-delimited result block from stdout
// and converts it to an answer value. A named output file takes over
// when no direct result was captured.
func parseOutput(stdout, execDir string) (answer.Value, bool) {
	startIdx := strings.Index(stdout, resultStartMarker)
	endIdx := strings.Index(stdout, resultEndMarker)
	if startIdx < 0 || endIdx < 0 || endIdx < startIdx {
		return answer.Value{}, false
	}

	blob := strings.TrimSpace(stdout[startIdx+len(resultStartMarker) : endIdx])
	var block resultBlock
	if err := json.Unmarshal([]byte(blob), &block); err != nil {
		logging.SandboxWarn("malformed result block: %v", err)
		return answer.Value{}, false
	}

	if len(block.Result) > 0 {
		var decoded interface{}
		if err := json.Unmarshal(block.Result, &decoded); err != nil {
			logging.SandboxWarn("malformed result value: %v", err)
			return answer.Value{}, false
		}
		if decoded != nil {
			return answer.FromDecoded(decoded), true
		}
	}

	if block.OutputFile != "" {
		return processOutputFile(filepath.Join(execDir, block.OutputFile))
	}

	return answer.Value{}, false
}

// outputMimeTypes maps artifact extensions to the data-URI MIME type.
var outputMimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".svg":  "image/svg+xml",
	".csv":  "text/csv",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// processOutputFile converts an artifact file into an answer: JSON files
// parse into structured answers, everything else becomes a typed base64
// data URI.
func processOutputFile(path string) (answer.Value, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.SandboxWarn("output file missing: %v", err)
		return answer.Value{}, false
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		var decoded interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			logging.SandboxWarn("output json parse failed: %v", err)
			return answer.Value{}, false
		}
		return answer.FromDecoded(decoded), true
	}

	mime, ok := outputMimeTypes[ext]
	if !ok {
		mime = "application/octet-stream"
	}
	uri := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	return answer.String(uri), true
}
