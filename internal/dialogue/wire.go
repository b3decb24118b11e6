// Package dialogue normalizes conversations from a hosted AI-dialogue
// service into the shared conversation/message model. Conversations
// arrive as parent-pointer message trees; linearization follows the
// service's designated current node back to the root.
package dialogue

import (
	"strings"
	"time"

	"scrivener/internal/source"
)

// Wire types for the dialogue service API.

type wireConversationList struct {
	Items []wireConversationItem `json:"items"`
	Total int                    `json:"total"`
}

type wireConversationItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	UpdateTime float64 `json:"update_time"`
}

// wireTree is one conversation's full message graph: a node map keyed
// by node ID plus the ID of the current leaf.
type wireTree struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	CurrentNode string              `json:"current_node"`
	Mapping     map[string]wireNode `json:"mapping"`
}

type wireNode struct {
	ID      string       `json:"id"`
	Parent  string       `json:"parent"`
	Message *wireMessage `json:"message"`
}

type wireMessage struct {
	ID         string       `json:"id"`
	Author     wireAuthor   `json:"author"`
	CreateTime float64      `json:"create_time"`
	Text       string       `json:"text"`
	Content    *wireContent `json:"content"`
	Metadata   wireMetadata `json:"metadata"`
}

type wireAuthor struct {
	Role string `json:"role"`
}

type wireContent struct {
	ContentType string   `json:"content_type"`
	Parts       []string `json:"parts"`
}

type wireMetadata struct {
	Attachments []wireAttachment `json:"attachments"`
}

type wireAttachment struct {
	Name          string `json:"name"`
	ExtractedText string `json:"extracted_text"`
}

// assemblePayload builds a message's text. A direct text field wins
// (trimmed). Otherwise attachment-extracted text and structured
// content-block text are concatenated in that order, separated by a
// blank line, then trimmed. An empty result stays an empty string so
// the message's position in the lineage is never silently dropped.
func assemblePayload(m *wireMessage) string {
	if m == nil {
		return ""
	}
	if strings.TrimSpace(m.Text) != "" {
		return strings.TrimSpace(m.Text)
	}

	var parts []string
	for _, att := range m.Metadata.Attachments {
		if att.ExtractedText != "" {
			parts = append(parts, att.ExtractedText)
		}
	}
	if m.Content != nil {
		for _, p := range m.Content.Parts {
			if p != "" {
				parts = append(parts, p)
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// normalizeRole maps the service's author roles onto the shared model.
// The second return is false for roles that are not part of the
// human/assistant dialogue (system scaffolding, tool output).
func normalizeRole(role string) (source.Role, bool) {
	switch role {
	case "user", "human":
		return source.RoleHuman, true
	case "assistant":
		return source.RoleAssistant, true
	default:
		return "", false
	}
}

// linearize converts a wire tree into the ordered root-to-leaf message
// path. All nodes participate in reconstruction so parent chains stay
// intact; system and tool scaffolding is filtered out afterwards.
func linearize(tree *wireTree) []source.Message {
	if tree == nil || len(tree.Mapping) == 0 {
		return nil
	}

	all := make([]source.Message, 0, len(tree.Mapping))
	for id, node := range tree.Mapping {
		msg := source.Message{
			ID:       id,
			ParentID: node.Parent,
			Text:     assemblePayload(node.Message),
		}
		if node.Message != nil {
			if role, ok := normalizeRole(node.Message.Author.Role); ok {
				msg.Sender = role
			}
			if node.Message.CreateTime > 0 {
				sec := int64(node.Message.CreateTime)
				nsec := int64((node.Message.CreateTime - float64(sec)) * 1e9)
				msg.Timestamp = time.Unix(sec, nsec).UTC()
			}
		}
		all = append(all, msg)
	}

	path := source.Thread(all, tree.CurrentNode)

	kept := path[:0:0]
	for _, m := range path {
		if m.Sender == "" {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}
