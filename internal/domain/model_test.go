package domain

import (
	"encoding/json"
	"testing"
)

func TestParseModelIDKnownAndUnknown(t *testing.T) {
	tests := []struct {
		id   string
		want Model
	}{
		{"claude-opus-4-5-20251101", ModelOpus45},
		{"claude-sonnet-4-20250514", ModelSonnet4},
		{"claude-haiku-3-5-20241022", ModelHaiku35},
		{"claude-sonnet-3-5-v2-20241022", ModelSonnet35V2},
		{"gpt-5-turbo", ModelUnknown},
		{"", ModelUnknown},
	}
	for _, tt := range tests {
		if got := ParseModelID(tt.id); got != tt.want {
			t.Errorf("ParseModelID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestModelUnmarshalJSONUnknownIsConservative(t *testing.T) {
	var m Model
	if err := json.Unmarshal([]byte(`"some-future-model-id"`), &m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != ModelUnknown {
		t.Fatalf("got %v, want ModelUnknown", m)
	}
	if m.ContextWindowSize() <= 0 {
		t.Error("ModelUnknown must have a non-zero conservative context window")
	}
}

func TestModelMarshalRoundTrip(t *testing.T) {
	data, err := json.Marshal(ModelOpus45)
	if err != nil {
		t.Fatal(err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m != ModelOpus45 {
		t.Errorf("round trip = %v, want ModelOpus45", m)
	}
}
