package planner

import (
	"encoding/json"

	"scrivener/internal/llm"
	"scrivener/internal/tools"
)

// Block is one content element inside a turn. A turn holds its blocks
// in the order they were produced, so interleaved text and tool
// activity replay in sequence.
type Block struct {
	Type       string         `json:"type"` // text, tool_use, tool_result
	Text       string         `json:"text,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	IsError    bool           `json:"is_error,omitempty"`
}

// Turn is one participant turn in the planning conversation.
type Turn struct {
	Role   string  `json:"role"` // user, assistant, tool
	Blocks []Block `json:"blocks"`
}

// Transcript is the append-only record of a planning run. It captures
// every model turn and tool exchange for persistence and review.
type Transcript struct {
	turns []Turn
}

// AppendUser records a user turn containing plain text.
func (t *Transcript) AppendUser(text string) {
	t.turns = append(t.turns, Turn{
		Role:   "user",
		Blocks: []Block{{Type: "text", Text: text}},
	})
}

// AppendAssistant records a model turn: its text, then any tool calls
// in the order the model issued them.
func (t *Transcript) AppendAssistant(msg llm.Message) {
	turn := Turn{Role: "assistant"}
	if msg.Content != "" {
		turn.Blocks = append(turn.Blocks, Block{Type: "text", Text: msg.Content})
	}
	for _, tc := range msg.ToolCalls {
		turn.Blocks = append(turn.Blocks, Block{
			Type:       "tool_use",
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
			Arguments:  tc.Arguments,
		})
	}
	t.turns = append(t.turns, turn)
}

// AppendToolResults records one turn holding a round's tool results in
// the order the calls were issued.
func (t *Transcript) AppendToolResults(results []tools.Result) {
	turn := Turn{Role: "tool"}
	for _, res := range results {
		turn.Blocks = append(turn.Blocks, Block{
			Type:       "tool_result",
			Text:       res.Content,
			ToolCallID: res.CallID,
			ToolName:   res.Name,
			IsError:    res.IsError,
		})
	}
	t.turns = append(t.turns, turn)
}

// Turns returns a copy of the recorded turns.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of recorded turns.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// MarshalJSON renders the transcript as a JSON array of turns.
func (t *Transcript) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.turns)
}

// UnmarshalJSON restores a transcript from its JSON form.
func (t *Transcript) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &t.turns)
}
