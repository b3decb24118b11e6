package dialogue

// builtinSample is the last-resort fallback conversation. When both
// the service and the local snapshot are unavailable, the agent still
// receives one well-formed conversation it can reason about instead of
// an unhandled failure.
func builtinSample() *wireTree {
	return &wireTree{
		ID:          "sample-conversation",
		Title:       "Weekend trip planning",
		CurrentNode: "n3",
		Mapping: map[string]wireNode{
			"n0": {
				ID: "n0",
			},
			"n1": {
				ID:     "n1",
				Parent: "n0",
				Message: &wireMessage{
					ID:         "n1",
					Author:     wireAuthor{Role: "user"},
					CreateTime: 1755648000, // 2025-08-20
					Text:       "Help me plan a weekend hiking trip near the coast.",
				},
			},
			"n2": {
				ID:     "n2",
				Parent: "n1",
				Message: &wireMessage{
					ID:         "n2",
					Author:     wireAuthor{Role: "assistant"},
					CreateTime: 1755648060,
					Text:       "Happy to help. What distance are you comfortable with, and do you want to camp overnight or stay somewhere in town?",
				},
			},
			"n3": {
				ID:     "n3",
				Parent: "n2",
				Message: &wireMessage{
					ID:         "n3",
					Author:     wireAuthor{Role: "user"},
					CreateTime: 1755648120,
					Text:       "Around ten miles a day, and I'd rather camp.",
				},
			},
		},
	}
}

func builtinSampleList() []wireConversationItem {
	s := builtinSample()
	return []wireConversationItem{{
		ID:         s.ID,
		Title:      s.Title,
		UpdateTime: 1755648120,
	}}
}
