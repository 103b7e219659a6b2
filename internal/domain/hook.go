package domain

import "encoding/json"

// HookEventType enumerates the agent's hook vocabulary. ParseHookEventType
// returns (0, false) for anything outside this set -- the raw-JSON parser
// treats an unrecognized hook name as a no-op, not an error (spec §4.2).
type HookEventType int

const (
	PreToolUse HookEventType = iota
	PostToolUse
	PostToolUseFailure
	UserPromptSubmit
	Stop
	SubagentStart
	SubagentStop
	SessionStart
	SessionEnd
	PreCompact
	Setup
	Notification
)

var hookNames = map[HookEventType]string{
	PreToolUse:          "PreToolUse",
	PostToolUse:         "PostToolUse",
	PostToolUseFailure:  "PostToolUseFailure",
	UserPromptSubmit:    "UserPromptSubmit",
	Stop:                "Stop",
	SubagentStart:       "SubagentStart",
	SubagentStop:        "SubagentStop",
	SessionStart:        "SessionStart",
	SessionEnd:          "SessionEnd",
	PreCompact:          "PreCompact",
	Setup:               "Setup",
	Notification:        "Notification",
}

var hookFromName = func() map[string]HookEventType {
	m := make(map[string]HookEventType, len(hookNames))
	for k, v := range hookNames {
		m[v] = k
	}
	return m
}()

func (h HookEventType) String() string {
	if s, ok := hookNames[h]; ok {
		return s
	}
	return "Unknown"
}

// ParseHookEventType looks up a raw hook_event_name string. ok is false for
// any name outside the fixed vocabulary.
func ParseHookEventType(name string) (HookEventType, bool) {
	h, ok := hookFromName[name]
	return h, ok
}

func (h HookEventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *HookEventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := hookFromName[s]; ok {
		*h = v
	}
	return nil
}
