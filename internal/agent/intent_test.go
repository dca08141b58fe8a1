package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		message string
		want    []Intent
	}{
		{
			name:    "no keywords",
			reply:   "Hello there!",
			message: "hi",
			want:    nil,
		},
		{
			name:    "calculate from message",
			reply:   "I'll calculate this.",
			message: "What is 10 * 5?",
			want:    []Intent{Calculate{Expression: "10 * 5"}},
		},
		{
			name:    "math with function",
			reply:   "This is simple math.",
			message: "what's sqrt(16) then",
			want:    []Intent{Calculate{Expression: "sqrt(16)"}},
		},
		{
			name:    "expression only in reply",
			reply:   "To calculate it: 3 + 4.",
			message: "add three and four",
			want:    []Intent{Calculate{Expression: "3 + 4"}},
		},
		{
			name:    "calculate without expression",
			reply:   "I cannot calculate that.",
			message: "how much is a lot",
			want:    nil,
		},
		{
			name:    "numbers without operators are ignored",
			reply:   "Let me calculate.",
			message: "In 2024 what is 2^10?",
			want:    []Intent{Calculate{Expression: "2^10"}},
		},
		{
			name:    "leading minus is kept",
			reply:   "Let me do the math",
			message: "what is -3 + 4",
			want:    []Intent{Calculate{Expression: "-3 + 4"}},
		},
		{
			name:    "hyphen after a word is not a sign",
			reply:   "I'll calculate it.",
			message: "COVID-19 doubled is 19 * 2",
			want:    []Intent{Calculate{Expression: "19 * 2"}},
		},
		{
			name:    "search uses the message",
			reply:   "I should search the web.",
			message: "latest Go release",
			want:    []Intent{Search{Query: "latest Go release"}},
		},
		{
			name:    "read file names from message and reply",
			reply:   "I'll open notes.txt and data/report.csv",
			message: "check notes.txt",
			want:    []Intent{ReadFile{Path: "notes.txt"}, ReadFile{Path: "data/report.csv"}},
		},
		{
			name:    "several intents keep their order",
			reply:   "I'll find info, read config.yaml and calculate 1 + 1",
			message: "help",
			want: []Intent{
				Calculate{Expression: "1 + 1"},
				Search{Query: "help"},
				ReadFile{Path: "config.yaml"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.reply, tt.message))
		})
	}
}

func TestClassify_SearchQueryIsTruncated(t *testing.T) {
	message := strings.Repeat("é", 150)
	got := Classify("search", message)
	assert.Equal(t, []Intent{Search{Query: strings.Repeat("é", 100)}}, got)
}

func TestIntentTool(t *testing.T) {
	name, args := Calculate{Expression: "1+1"}.Tool()
	assert.Equal(t, "calculate", name)
	assert.Equal(t, map[string]any{"expression": "1+1"}, args)

	name, args = Search{Query: "go"}.Tool()
	assert.Equal(t, "web_search", name)
	assert.Equal(t, map[string]any{"query": "go"}, args)

	name, args = ReadFile{Path: "a.txt"}.Tool()
	assert.Equal(t, "read_file", name)
	assert.Equal(t, map[string]any{"file_path": "a.txt"}, args)
}
