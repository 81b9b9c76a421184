package model

import "fmt"

// Label is a class index of the classifier output.
type Label int

// Class labels.
const (
	AI    Label = 0
	Human Label = 1
)

// String returns "ai", "human", or "unknown" for out-of-range indices.
func (l Label) String() string {
	switch l {
	case AI:
		return "ai"
	case Human:
		return "human"
	default:
		return "unknown"
	}
}

// Valid reports whether l is one of the known labels.
func (l Label) Valid() bool {
	return l == AI || l == Human
}

// ParseLabel parses "ai", "human", "0" or "1".
func ParseLabel(s string) (Label, error) {
	switch s {
	case "ai", "0":
		return AI, nil
	case "human", "1":
		return Human, nil
	default:
		return 0, fmt.Errorf("unknown label %q (want ai or human)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Argmax returns the index of the largest logit. Ties resolve to the
// lower index.
func Argmax(logits []float32) Label {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	return Label(best)
}
