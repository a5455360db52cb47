package llm

import (
	"errors"
	"testing"
)

func TestParseQuestionsShapes(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantShape Shape
		wantFirst string
		wantLen   int
	}{
		{
			name:      "bare array",
			raw:       `[{"question":"What is ATP?","answer":"Energy currency."},{"question":"Where?","answer":"Mitochondria."}]`,
			wantShape: ShapeArray,
			wantFirst: "What is ATP?",
			wantLen:   2,
		},
		{
			name:      "questions key",
			raw:       `{"questions":[{"question":"Q1","answer":"A1"}]}`,
			wantShape: ShapeQuestionsKey,
			wantFirst: "Q1",
			wantLen:   1,
		},
		{
			name:      "keyed objects numeric order",
			raw:       `{"10":{"question":"Q10","answer":"A10"},"2":{"question":"Q2","answer":"A2"},"note":"skip me"}`,
			wantShape: ShapeKeyedObjects,
			wantFirst: "Q2",
			wantLen:   2,
		},
		{
			name:      "code fenced",
			raw:       "```json\n{\"questions\":[{\"question\":\"Q\",\"answer\":\"A\"}]}\n```",
			wantShape: ShapeQuestionsKey,
			wantFirst: "Q",
			wantLen:   1,
		},
		{
			name:      "drops incomplete pairs",
			raw:       `[{"question":"Q","answer":""},{"question":"Q2"},{"question":" Keep ","answer":" me "}]`,
			wantShape: ShapeArray,
			wantFirst: "Keep",
			wantLen:   1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuestions([]byte(tt.raw))
			if err != nil {
				t.Fatalf("ParseQuestions: %v", err)
			}
			if got.Shape != tt.wantShape {
				t.Fatalf("shape = %s, want %s", got.Shape, tt.wantShape)
			}
			if len(got.Pairs) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got.Pairs), tt.wantLen)
			}
			if got.Pairs[0].Question != tt.wantFirst {
				t.Fatalf("first = %q, want %q", got.Pairs[0].Question, tt.wantFirst)
			}
		})
	}
}

func TestParseQuestionsFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "empty", raw: "", want: ErrUnrecognizedShape},
		{name: "scalar", raw: `"hello"`, want: ErrUnrecognizedShape},
		{name: "object without pairs", raw: `{"summary":"text"}`, want: ErrUnrecognizedShape},
		{name: "empty array", raw: `[]`, want: ErrNoQuestions},
		{name: "empty questions key", raw: `{"questions":[]}`, want: ErrNoQuestions},
		{name: "broken json", raw: `{"questions":[`, want: ErrUnrecognizedShape},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuestions([]byte(tt.raw))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
