package agent

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/comigor/cidion/pkg/tools"
)

// Intent is a tool invocation inferred from free text. The variants are
// Calculate, Search and ReadFile; no intent at all means no tool.
type Intent interface {
	// Tool returns the registry name and arguments the intent maps to.
	Tool() (name string, args map[string]any)
}

// Calculate asks the calculator to evaluate Expression.
type Calculate struct{ Expression string }

// Search asks the web search tool for Query.
type Search struct{ Query string }

// ReadFile asks the file reader for Path.
type ReadFile struct{ Path string }

func (c Calculate) Tool() (string, map[string]any) {
	return tools.CalculatorName, map[string]any{"expression": c.Expression}
}

func (s Search) Tool() (string, map[string]any) {
	return tools.WebSearchName, map[string]any{"query": s.Query}
}

func (r ReadFile) Tool() (string, map[string]any) {
	return tools.ReadFileName, map[string]any{"file_path": r.Path}
}

const maxSearchQuery = 100

var (
	exprPattern     = regexp.MustCompile(`-?(?:\b(?:sqrt|sin|cos|tan|log10|log|exp|abs|round|min|max)\s*)?[(\d][\d\s.,+\-*/^()]*`)
	exprFunction    = regexp.MustCompile(`^-?(?:sqrt|sin|cos|tan|log10|log|exp|abs|round|min|max)\s*\(`)
	filenamePattern = regexp.MustCompile(`[\w./~-]*\w\.[A-Za-z][A-Za-z0-9]{0,4}\b`)
)

// Classify inspects the model's free-text reply for keywords and derives the
// tool calls they imply. Arguments come from the user's message first and the
// reply second. Intents are ordered Calculate, Search, ReadFile.
func Classify(reply, message string) []Intent {
	lower := strings.ToLower(reply)
	var intents []Intent

	if containsAny(lower, "calculate", "math") {
		if expr, ok := findExpression(message); ok {
			intents = append(intents, Calculate{Expression: expr})
		} else if expr, ok := findExpression(reply); ok {
			intents = append(intents, Calculate{Expression: expr})
		}
	}

	if containsAny(lower, "search", "find") {
		intents = append(intents, Search{Query: truncateRunes(message, maxSearchQuery)})
	}

	if containsAny(lower, "read", "file", "open") {
		seen := map[string]bool{}
		for _, text := range []string{message, reply} {
			for _, path := range filenamePattern.FindAllString(text, -1) {
				if seen[path] {
					continue
				}
				seen[path] = true
				intents = append(intents, ReadFile{Path: path})
			}
		}
	}

	return intents
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// findExpression returns the first run of arithmetic that has a digit and
// either an operator or a function call.
func findExpression(text string) (string, bool) {
	for _, loc := range exprPattern.FindAllStringIndex(text, -1) {
		m := text[loc[0]:loc[1]]
		// a minus glued to a word or closing paren is a hyphen, not a sign
		if m[0] == '-' && loc[0] > 0 && isOperandEnd(text[:loc[0]]) {
			m = m[1:]
		}
		expr := strings.TrimRight(strings.TrimSpace(m), ".,")
		if !strings.ContainsFunc(expr, unicode.IsDigit) {
			continue
		}
		if strings.ContainsAny(expr, "+-*/^") || exprFunction.MatchString(expr) {
			return expr, true
		}
	}
	return "", false
}

func isOperandEnd(prefix string) bool {
	r, _ := utf8.DecodeLastRuneInString(prefix)
	return r == ')' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
