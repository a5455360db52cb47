package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Shape tags which of the accepted payload layouts a response used.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeArray is a bare [{"question","answer"}, ...] array.
	ShapeArray
	// ShapeQuestionsKey is {"questions": [...]}.
	ShapeQuestionsKey
	// ShapeKeyedObjects is {"1": {"question","answer"}, "2": {...}}.
	ShapeKeyedObjects
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeQuestionsKey:
		return "questions_key"
	case ShapeKeyedObjects:
		return "keyed_objects"
	default:
		return "unknown"
	}
}

// QA is one normalized question/answer pair.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Parsed is a classified provider payload.
type Parsed struct {
	Shape Shape
	Pairs []QA
}

var (
	ErrUnrecognizedShape = errors.New("unrecognized question payload")
	ErrNoQuestions       = errors.New("no questions in payload")
)

type rawPair struct {
	Question *string `json:"question"`
	Answer   *string `json:"answer"`
}

// ParseQuestions classifies raw into one Shape and extracts its pairs.
// Pairs missing a question or an answer are dropped. A payload that yields
// no pairs is an error.
func ParseQuestions(raw []byte) (Parsed, error) {
	body := stripCodeFence(raw)
	if len(body) == 0 {
		return Parsed{}, ErrUnrecognizedShape
	}

	switch body[0] {
	case '[':
		pairs, err := decodePairs(body)
		if err != nil {
			return Parsed{}, err
		}
		return finish(ShapeArray, pairs)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return Parsed{}, errors.Join(ErrUnrecognizedShape, err)
		}
		if inner, ok := obj["questions"]; ok && isArray(inner) {
			pairs, err := decodePairs(inner)
			if err != nil {
				return Parsed{}, err
			}
			return finish(ShapeQuestionsKey, pairs)
		}
		pairs := keyedPairs(obj)
		if len(pairs) == 0 {
			return Parsed{}, ErrUnrecognizedShape
		}
		return finish(ShapeKeyedObjects, pairs)
	default:
		return Parsed{}, ErrUnrecognizedShape
	}
}

func finish(shape Shape, pairs []QA) (Parsed, error) {
	if len(pairs) == 0 {
		return Parsed{Shape: shape}, ErrNoQuestions
	}
	return Parsed{Shape: shape, Pairs: pairs}, nil
}

func decodePairs(body []byte) ([]QA, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, errors.Join(ErrUnrecognizedShape, err)
	}
	out := make([]QA, 0, len(items))
	for _, item := range items {
		if qa, ok := toPair(item); ok {
			out = append(out, qa)
		}
	}
	return out, nil
}

func keyedPairs(obj map[string]json.RawMessage) []QA {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		if (errA == nil) != (errB == nil) {
			return errA == nil
		}
		return keys[i] < keys[j]
	})
	out := make([]QA, 0, len(keys))
	for _, k := range keys {
		if qa, ok := toPair(obj[k]); ok {
			out = append(out, qa)
		}
	}
	return out
}

func toPair(item json.RawMessage) (QA, bool) {
	if len(bytes.TrimSpace(item)) == 0 || bytes.TrimSpace(item)[0] != '{' {
		return QA{}, false
	}
	var p rawPair
	if err := json.Unmarshal(item, &p); err != nil {
		return QA{}, false
	}
	if p.Question == nil || p.Answer == nil {
		return QA{}, false
	}
	q := strings.TrimSpace(*p.Question)
	a := strings.TrimSpace(*p.Answer)
	if q == "" || a == "" {
		return QA{}, false
	}
	return QA{Question: q, Answer: a}, true
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// stripCodeFence removes a surrounding ```json ... ``` block if present.
func stripCodeFence(raw []byte) []byte {
	body := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(body, []byte("```")) {
		return body
	}
	body = bytes.TrimPrefix(body, []byte("```"))
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = bytes.TrimPrefix(body, []byte("json"))
	}
	body = bytes.TrimSpace(body)
	body = bytes.TrimSuffix(body, []byte("```"))
	return bytes.TrimSpace(body)
}
