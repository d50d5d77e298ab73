package services

import "encoding/json"

// How a stored AI result should render.
const (
	InterpretPlainText = "plain_text"
	InterpretQASet     = "qa_set"
)

type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Interpretation is the derived rendering of a raw result string: either a
// question/answer list or the text as-is. It is never persisted; Interpret
// re-derives it from the stored string on every read.
type Interpretation struct {
	Type  string   `json:"type"`
	Text  string   `json:"text,omitempty"`
	Pairs []QAPair `json:"items,omitempty"`
}

// Interpret decides how raw model output should render. The text is treated
// as a Q&A set only when it parses as a non-empty JSON array whose every
// element is an object carrying string fields "Question" and "Answer"
// (case-sensitive, extra fields ignored). Anything else, including malformed
// JSON, falls back to plain text: leniency is the contract here, so this
// function never fails for any input string.
func Interpret(resultText string) Interpretation {
	plain := Interpretation{Type: InterpretPlainText, Text: resultText}

	var elements []map[string]interface{}
	if err := json.Unmarshal([]byte(resultText), &elements); err != nil {
		return plain
	}
	if len(elements) == 0 {
		return plain
	}

	pairs := make([]QAPair, 0, len(elements))
	for _, el := range elements {
		question, qok := el["Question"].(string)
		answer, aok := el["Answer"].(string)
		if !qok || !aok {
			// One bad element voids the whole set; no partial extraction.
			return plain
		}
		pairs = append(pairs, QAPair{Question: question, Answer: answer})
	}

	return Interpretation{Type: InterpretQASet, Pairs: pairs}
}
