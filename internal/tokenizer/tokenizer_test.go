package tokenizer

import "testing"

func TestRuneTokenizer(t *testing.T) {
	tk := RuneTokenizer{}
	if got := tk.CountTokens("héllo"); got != 5 {
		t.Fatalf("expected 5 runes, got %d", got)
	}
}

func TestWordTokenizer(t *testing.T) {
	tk := WordTokenizer{}
	if got := tk.CountTokens("  the quick brown fox  "); got != 4 {
		t.Fatalf("expected 4 words, got %d", got)
	}
}

func TestHeuristicTokenizerFloor(t *testing.T) {
	tk := HeuristicTokenizer{}
	if got := tk.CountTokens("hi"); got != 1 {
		t.Fatalf("expected floor of 1 token, got %d", got)
	}
	if got := tk.CountTokens(""); got != 0 {
		t.Fatalf("expected 0 tokens for empty string, got %d", got)
	}
}

func TestHeuristicTokenizerScalesWithLength(t *testing.T) {
	tk := HeuristicTokenizer{}
	short := tk.CountTokens("abcd")
	long := tk.CountTokens("abcdabcdabcdabcd")
	if long <= short {
		t.Fatalf("expected longer text to count more tokens: short=%d long=%d", short, long)
	}
}
