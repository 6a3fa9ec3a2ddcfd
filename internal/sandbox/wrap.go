package sandbox

import (
	"fmt"
	"strings"
)

// Marker strings delimiting the JSON result block on stdout.
const (
	resultStartMarker = "__QUIZ_RESULT_START__"
	resultEndMarker   = "__QUIZ_RESULT_END__"
)

// wrapCode embeds user code in the harness that pins the working
// directory, captures the `answer` or `result` variable, falls back to
// the most recent artifact file, and prints the marker-delimited JSON
// result block. Errors go to stderr with a non-zero exit.
func wrapCode(code, execDir string) string {
	var b strings.Builder
	b.WriteString("import sys\n")
	b.WriteString("import os\n")
	b.WriteString("import json\n")
	b.WriteString("import base64\n")
	b.WriteString("from pathlib import Path\n")
	b.WriteString("\n")
	b.WriteString("# Pin working directory\n")
	fmt.Fprintf(&b, "os.chdir(%s)\n", pyString(execDir))
	b.WriteString("\n")
	b.WriteString("__result__ = None\n")
	b.WriteString("__output_file__ = None\n")
	b.WriteString("\n")
	b.WriteString("try:\n")
	b.WriteString(indent(code, 4))
	b.WriteString("\n")
	b.WriteString("    if 'answer' in locals():\n")
	b.WriteString("        __result__ = answer\n")
	b.WriteString("    elif 'result' in locals():\n")
	b.WriteString("        __result__ = result\n")
	b.WriteString("\n")
	b.WriteString("    output_files = []\n")
	b.WriteString("    for ext in ['*.png', '*.jpg', '*.jpeg', '*.svg', '*.csv', '*.json', '*.xlsx']:\n")
	b.WriteString("        output_files.extend(list(Path('.').glob(ext)))\n")
	b.WriteString("\n")
	b.WriteString("    if output_files and __result__ is None:\n")
	b.WriteString("        latest_file = max(output_files, key=os.path.getctime)\n")
	b.WriteString("        __output_file__ = str(latest_file)\n")
	b.WriteString("\n")
	b.WriteString("except Exception as e:\n")
	b.WriteString("    print(f\"EXECUTION_ERROR: {e}\", file=sys.stderr)\n")
	b.WriteString("    import traceback\n")
	b.WriteString("    traceback.print_exc()\n")
	b.WriteString("    sys.exit(1)\n")
	b.WriteString("\n")
	b.WriteString("output = {}\n")
	b.WriteString("if __result__ is not None:\n")
	b.WriteString("    output['result'] = __result__\n")
	b.WriteString("if __output_file__:\n")
	b.WriteString("    output['output_file'] = __output_file__\n")
	b.WriteString("\n")
	fmt.Fprintf(&b, "print(%q)\n", resultStartMarker)
	b.WriteString("print(json.dumps(output, default=str))\n")
	fmt.Fprintf(&b, "print(%q)\n", resultEndMarker)
	return b.String()
}

// indent prefixes every non-blank line with n spaces so the user code
// sits inside the try block.
func indent(code string, n int) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}

// pyString renders a Go string as a Python string literal.
func pyString(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + replacer.Replace(s) + `"`
}
