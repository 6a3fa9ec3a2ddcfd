// Package prompt builds the three LLM prompts the solver uses: strategy
// selection, direct answering, and code generation.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"quizsolver/internal/material"
)

// personalizationMarkers indicate the question expects the operator's
// identity substituted into the answer.
var personalizationMarkers = []string{"your email", "<your email>", "youremail"}

// NeedsPersonalization reports whether the question references the
// operator's identity.
func NeedsPersonalization(question string) bool {
	lower := strings.ToLower(question)
	for _, marker := range personalizationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Strategy builds the prompt that asks the LLM to choose between a
// direct answer and code execution.
func Strategy(question string, files *material.Set) string {
	var parts []string
	parts = append(parts,
		"Analyze this quiz question and determine the best solution approach.",
		"",
		"QUIZ QUESTION:",
		question,
		"",
	)

	if files.Len() > 0 {
		parts = append(parts, "AVAILABLE DATA FILES:")
		for _, key := range files.Keys() {
			m, _ := files.Get(key)
			parts = append(parts, fmt.Sprintf("- %s (Type: %s)", key, m.Kind))
		}
		parts = append(parts, "")
	}

	parts = append(parts,
		"TASK:",
		"Determine if this question requires:",
		"1. DIRECT ANSWER: Simple calculation, data lookup, or text processing that you can solve directly",
		"2. CODE EXECUTION: Complex tasks like:",
		"   - Creating visualizations (charts, plots, graphs)",
		"   - Machine learning models (regression, classification, clustering)",
		"   - Complex data transformations or aggregations",
		"   - Generating files (CSV, images, etc.)",
		"   - Statistical analysis requiring specific libraries",
		"",
		"If CODE EXECUTION is needed:",
		"- Write complete, executable Python code",
		"- Use standard libraries: pandas, numpy, matplotlib, seaborn, sklearn, etc.",
		"- Store the final answer in a variable called 'answer'",
		"- For visualizations, save to a file (e.g., plt.savefig('output.png'))",
		"- For CSV output, save to a file",
		"- Include all necessary imports",
		"- Handle file reading (files are available in current directory)",
		"- Code should be production-ready and handle edge cases",
		"",
		"Respond with:",
		"STRATEGY: [DIRECT or CODE_EXECUTION]",
		"",
		"If CODE_EXECUTION, provide:",
		"```python",
		"# Your complete Python code here",
		"```",
	)

	return strings.Join(parts, "\n")
}

// Direct builds the full-context prompt for answering without code.
// operatorEmail personalizes questions that ask for the operator's identity.
func Direct(question string, files *material.Set, operatorEmail string) string {
	var parts []string
	parts = append(parts,
		"You are solving a data analysis quiz. Analyze carefully and provide the CORRECT FINAL ANSWER ONLY, WITHOUT ANY EXPLANATIONS/STEPS.",
		"",
		"QUIZ QUESTION:",
		question,
		"",
	)

	if files.Len() > 0 {
		parts = append(parts, "DOWNLOADED FILES AND IMAGES:")
		for _, key := range files.Keys() {
			m, _ := files.Get(key)
			parts = append(parts, describeMaterial(key, m)...)
		}
		parts = append(parts, "")
	}

	if operatorEmail != "" && NeedsPersonalization(question) {
		parts = append(parts,
			"PERSONALIZATION:",
			fmt.Sprintf("Where the question refers to your email or a placeholder for it, use: %s", operatorEmail),
			"",
		)
	}

	parts = append(parts,
		"INSTRUCTIONS:",
		"1. Read the question carefully (including any images)",
		"2. Analyze any provided data",
		"3. Perform required calculations/analysis",
		"4. RETURN ONLY THE FINAL ANSWER IN THE REQUIRED FORMAT:",
		"   - Number: just the number (e.g., 12345)",
		"   - String: just the string (e.g., hello)",
		"   - Boolean: true or false",
		"   - JSON: valid JSON object",
		"   - Image: base64 data URI (data:image/png;base64,...)",
		"",
		"FINAL ANSWER:",
	)

	return strings.Join(parts, "\n")
}

// CodeGeneration builds the prompt that asks for a complete Python
// solution. Filenames match what the code runner materializes, so the
// generated code opens real files.
func CodeGeneration(question string, files *material.Set) string {
	var parts []string
	parts = append(parts,
		"Generate Python code to solve this quiz question.",
		"",
		"QUIZ QUESTION:",
		question,
		"",
	)

	if files.Len() > 0 {
		parts = append(parts, "AVAILABLE DATA FILES:")
		for _, key := range files.Keys() {
			m, _ := files.Get(key)
			filename := material.Filename(key, m.Kind)
			parts = append(parts, fmt.Sprintf("- %s (Type: %s)", filename, m.Kind))
			if m.Table != nil {
				parts = append(parts, fmt.Sprintf("  Columns: %v", m.Table.Columns))
			}
		}
		parts = append(parts, "")
	}

	parts = append(parts,
		"REQUIREMENTS:",
		"1. Write complete, executable Python code",
		"2. Import all necessary libraries (pandas, numpy, matplotlib, sklearn, etc.)",
		"3. Read data files from current directory using their filenames",
		"4. Store the final answer in a variable called 'answer'",
		"5. For visualizations:",
		"   - Create the plot/chart",
		"   - Save to a file (e.g., plt.savefig('output.png'))",
		"   - Use high DPI for quality (dpi=300)",
		"6. For CSV output:",
		"   - Save to a file (e.g., df.to_csv('output.csv', index=False))",
		"7. Handle errors gracefully",
		"8. Include comments explaining key steps",
		"",
		"OUTPUT FORMAT:",
		"Provide ONLY the Python code in a code block:",
		"```python",
		"# Your code here",
		"```",
	)

	return strings.Join(parts, "\n")
}

func describeMaterial(key string, m *material.Material) []string {
	var parts []string
	switch m.Kind {
	case material.KindImage, material.KindAudio:
		parts = append(parts, fmt.Sprintf("\n%s:", key))
		if m.Kind == material.KindImage {
			parts = append(parts, "Type: Image")
		} else {
			parts = append(parts, "Type: Audio")
		}
		alt := "N/A"
		if m.Media != nil && m.Media.AltText != "" {
			alt = m.Media.AltText
		}
		parts = append(parts, fmt.Sprintf("Alt text: %s", alt))
		if m.Media != nil {
			parts = append(parts, fmt.Sprintf("Data URI: %s... (truncated)", truncate(m.Media.DataURI, 100)))
		}
		parts = append(parts, "NOTE: Full base64 data available for analysis")

	case material.KindCSV, material.KindExcel:
		parts = append(parts, fmt.Sprintf("\nFile: %s", key))
		parts = append(parts, fmt.Sprintf("Type: %s", m.Kind))
		if m.Table != nil {
			parts = append(parts, fmt.Sprintf("Shape: (%d, %d)", m.Table.RowCount, m.Table.ColumnCount))
			parts = append(parts, fmt.Sprintf("Columns: %v", m.Table.Columns))
			parts = append(parts, fmt.Sprintf("Complete data: %s", marshalIndent(m.Table.Rows)))
		}

	case material.KindPDF:
		parts = append(parts, fmt.Sprintf("\nFile: %s", key))
		parts = append(parts, "Type: PDF")
		if m.PDF != nil {
			parts = append(parts, fmt.Sprintf("Pages: %d", m.PDF.PageCount))
			for i, page := range m.PDF.Pages {
				parts = append(parts, fmt.Sprintf("\nPage %d:", i+1))
				parts = append(parts, truncate(page, 500))
			}
		}

	case material.KindJSON:
		parts = append(parts, fmt.Sprintf("\nFile: %s", key))
		parts = append(parts, "Type: JSON")
		parts = append(parts, fmt.Sprintf("Data: %s", marshalIndent(m.JSON)))

	default:
		parts = append(parts, fmt.Sprintf("\nFile: %s", key))
		parts = append(parts, "Type: Text")
		parts = append(parts, fmt.Sprintf("Content: %s", truncate(m.Text, 2000)))
	}
	return parts
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func marshalIndent(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
