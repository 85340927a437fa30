// Package bus defines the messages exchanged between transport adapters and
// the dispatcher.
package bus

// InboundMessage is one user message received from a transport adapter.
type InboundMessage struct {
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name,omitempty"`
	ChatID     string            `json:"chat_id"`
	ChatType   string            `json:"chat_type,omitempty"`
	ChatTitle  string            `json:"chat_title,omitempty"`
	Content    string            `json:"content"`
	Command    string            `json:"command,omitempty"`
	ReplyToBot bool              `json:"reply_to_bot,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is the reply handed back to the transport adapter.
//
// An empty Content means no reply is sent (silent rejection).
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
