package domain

import (
	"encoding/json"
	"strings"
)

// Model enumerates the Claude models the daemon knows how to price and
// size. Unknown model-id strings parse to Unknown, which carries
// conservative (large window, zero cost) defaults rather than failing --
// the daemon must never reject a status line over an unrecognized model.
type Model int

const (
	ModelUnknown Model = iota
	ModelOpus45
	ModelSonnet4
	ModelHaiku35
	ModelSonnet35V2
)

var modelNames = map[Model]string{
	ModelUnknown:    "Unknown",
	ModelOpus45:     "Opus 4.5",
	ModelSonnet4:    "Sonnet 4",
	ModelHaiku35:    "Haiku 3.5",
	ModelSonnet35V2: "Sonnet 3.5 v2",
}

func (m Model) String() string {
	if s, ok := modelNames[m]; ok {
		return s
	}
	return "Unknown"
}

// modelPricing holds the per-model context window and cost-per-million
// token rates, in microdollars (matching Money's scale).
type modelPricing struct {
	contextWindow TokenCount
	inputPerM     Money
	outputPerM    Money
}

var pricing = map[Model]modelPricing{
	ModelOpus45:     {contextWindow: 200_000, inputPerM: USD(5.00), outputPerM: USD(25.00)},
	ModelSonnet4:    {contextWindow: 200_000, inputPerM: USD(3.00), outputPerM: USD(15.00)},
	ModelHaiku35:    {contextWindow: 200_000, inputPerM: USD(0.80), outputPerM: USD(4.00)},
	ModelSonnet35V2: {contextWindow: 200_000, inputPerM: USD(3.00), outputPerM: USD(15.00)},
	// Unknown gets a conservative, generous window and zero reported cost:
	// better to under-bill a display estimate than to claim the window is
	// smaller than it actually is and falsely alarm the user.
	ModelUnknown: {contextWindow: 200_000, inputPerM: 0, outputPerM: 0},
}

func (m Model) ContextWindowSize() TokenCount { return pricing[m].contextWindow }
func (m Model) InputCostPerMillion() Money     { return pricing[m].inputPerM }
func (m Model) OutputCostPerMillion() Money    { return pricing[m].outputPerM }

// EstimateCost computes the cost of inputTokens+outputTokens at this
// model's per-million rates.
func (m Model) EstimateCost(inputTokens, outputTokens TokenCount) Money {
	p := pricing[m]
	in := Money(int64(inputTokens)) * p.inputPerM / 1_000_000
	out := Money(int64(outputTokens)) * p.outputPerM / 1_000_000
	return in.Add(out)
}

// ParseModelID maps an agent-reported model id string (e.g.
// "claude-opus-4-5-20251101") to a Model. Unrecognized strings map to
// ModelUnknown rather than erroring -- the raw-JSON parsers must tolerate
// model identifiers the daemon has not been updated to recognize yet.
func ParseModelID(id string) Model {
	lower := strings.ToLower(id)
	switch {
	case strings.Contains(lower, "opus-4-5"), strings.Contains(lower, "opus-4.5"):
		return ModelOpus45
	case strings.Contains(lower, "haiku-3-5"), strings.Contains(lower, "haiku-3.5"):
		return ModelHaiku35
	case strings.Contains(lower, "sonnet-3-5"), strings.Contains(lower, "sonnet-3.5"):
		return ModelSonnet35V2
	case strings.Contains(lower, "sonnet-4"):
		return ModelSonnet4
	default:
		return ModelUnknown
	}
}

func (m Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Model) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for model, name := range modelNames {
		if s == name {
			*m = model
			return nil
		}
	}
	*m = ParseModelID(s)
	return nil
}
