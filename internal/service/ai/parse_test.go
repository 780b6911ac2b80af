package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		max   int
		want  []string
	}{
		{
			name:  "numbered with quotes",
			reply: "Ideas:\n1. \"What are you building these days?\"\n2) Which editor do you swear by?\n3. 'Tabs or spaces, honestly?'",
			max:   3,
			want:  []string{"What are you building these days?", "Which editor do you swear by?", "Tabs or spaces, honestly?"},
		},
		{
			name:  "bullets and cap",
			reply: "- Have you tried Rust for embedded work?\n* What was your first programming language?\n• Favourite conference talk?",
			max:   2,
			want:  []string{"Have you tried Rust for embedded work?", "What was your first programming language?"},
		},
		{
			name:  "short lines only fall back to whole reply",
			reply: "Sure!\nOk",
			max:   3,
			want:  []string{"Sure!\nOk"},
		},
		{
			name:  "blank",
			reply: "  \n ",
			max:   3,
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseList(tt.reply, tt.max))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"wrapped in prose", `Sure! Here it is: {"a": 1} hope that helps`, `{"a": 1}`, true},
		{"nested", `x {"a": {"b": [1, {"c": 2}]}} y {"z": 0}`, `{"a": {"b": [1, {"c": 2}]}}`, true},
		{"braces inside strings", `{"reason": "uses } and { freely", "q": "say \"}\""}`, `{"reason": "uses } and { freely", "q": "say \"}\""}`, true},
		{"fenced", "```json\n{\"is_safe\": true}\n```", `{"is_safe": true}`, true},
		{"unbalanced then balanced", `{"broken": {"x": 1} ... `, `{"x": 1}`, true},
		{"none", "no json here", "", false},
		{"never closed", `{"a": "b"`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeJSONObjectFallsBackToDefault(t *testing.T) {
	def := Verdict{IsSafe: true, RiskLevel: "low"}

	v, ok := DecodeJSONObject(`verdict: {"is_safe": false, "risk_level": "high", "suggested_action": "block"}`, def)
	assert.True(t, ok)
	assert.False(t, v.IsSafe)
	assert.Equal(t, "block", v.SuggestedAction)

	v, ok = DecodeJSONObject(`{"is_safe": "maybe"}`, def)
	assert.False(t, ok)
	assert.Equal(t, def, v)

	v, ok = DecodeJSONObject("I cannot help with that.", def)
	assert.False(t, ok)
	assert.Equal(t, def, v)
}

func TestParseDateIdeas(t *testing.T) {
	reply := "Here are some ideas:\n\n1. **Coffee & Code**: Meet at a cafe and review each other's side projects.\n" +
		"2. **Hackathon Date:** Team up at a weekend hackathon.\n" +
		"3. **Retro Arcade**"

	ideas := ParseDateIdeas(reply, 5)
	assert.Equal(t, []DateIdea{
		{Title: "Coffee & Code", Description: "Meet at a cafe and review each other's side projects."},
		{Title: "Hackathon Date", Description: "Team up at a weekend hackathon."},
	}, ideas)

	assert.Len(t, ParseDateIdeas(reply, 1), 1)
	assert.Nil(t, ParseDateIdeas("just go for a walk", 5))
}

func TestPairKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey(7, 3), PairKey(3, 7))
	assert.Equal(t, "3:7", PairKey(7, 3))
	assert.NotEqual(t, DirectedKey(7, 3), DirectedKey(3, 7))
}
