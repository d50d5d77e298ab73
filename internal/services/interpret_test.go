package services

import (
	"encoding/json"
	"testing"
)

func TestInterpret_ValidQASet(t *testing.T) {
	input := `[{"Question":"What is osmosis?","Answer":"Movement of water across a membrane."},
		{"Question":"Define diffusion","Answer":"Movement from high to low concentration."}]`

	got := Interpret(input)
	if got.Type != InterpretQASet {
		t.Fatalf("expected qa_set, got %s", got.Type)
	}
	if len(got.Pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(got.Pairs))
	}
	if got.Pairs[0].Question != "What is osmosis?" {
		t.Errorf("pair order not preserved: %q", got.Pairs[0].Question)
	}
	if got.Pairs[1].Answer != "Movement from high to low concentration." {
		t.Errorf("unexpected second answer: %q", got.Pairs[1].Answer)
	}
}

func TestInterpret_ExtraFieldsIgnored(t *testing.T) {
	input := `[{"Question":"q","Answer":"a","Difficulty":"hard","Marks":5}]`

	got := Interpret(input)
	if got.Type != InterpretQASet {
		t.Fatalf("extra fields must not break the Q&A shape, got %s", got.Type)
	}
	if got.Pairs[0].Question != "q" || got.Pairs[0].Answer != "a" {
		t.Errorf("unexpected pair: %+v", got.Pairs[0])
	}
}

func TestInterpret_EmptyArrayIsPlainText(t *testing.T) {
	got := Interpret("[]")
	if got.Type != InterpretPlainText {
		t.Fatalf("empty array must render as plain text, got %s", got.Type)
	}
	if got.Text != "[]" {
		t.Errorf("plain text must be the literal input, got %q", got.Text)
	}
}

func TestInterpret_NonJSONIsPlainTextUnchanged(t *testing.T) {
	inputs := []string{
		"hello",
		"",
		"The mitochondria is the powerhouse of the cell.",
		`{"Question":"q","Answer":"a"}`, // object, not array
		"[1,2,3]",
		"null",
		"data: not json {",
	}

	for _, input := range inputs {
		got := Interpret(input)
		if got.Type != InterpretPlainText {
			t.Errorf("input %q: expected plain_text, got %s", input, got.Type)
		}
		if got.Text != input {
			t.Errorf("input %q: plain text must pass through unchanged, got %q", input, got.Text)
		}
	}
}

func TestInterpret_MixedShapesNoPartialExtraction(t *testing.T) {
	input := `[{"Question":"q","Answer":"a"},{"foo":"bar"}]`

	got := Interpret(input)
	if got.Type != InterpretPlainText {
		t.Fatalf("a single bad element must force plain text, got %s", got.Type)
	}
	if got.Text != input {
		t.Errorf("fallback must carry the raw string, got %q", got.Text)
	}
}

func TestInterpret_KeysAreCaseSensitive(t *testing.T) {
	got := Interpret(`[{"question":"q","answer":"a"}]`)
	if got.Type != InterpretPlainText {
		t.Fatalf("lowercase keys must not match, got %s", got.Type)
	}

	got = Interpret(`[{"Question":7,"Answer":"a"}]`)
	if got.Type != InterpretPlainText {
		t.Fatalf("non-string Question must force plain text, got %s", got.Type)
	}
}

func TestInterpret_PureFunctionOfInput(t *testing.T) {
	input := `[{"Question":"q","Answer":"a"}]`

	first := Interpret(input)
	second := Interpret(input)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("interpretation not stable across calls: %s vs %s", a, b)
	}
}
