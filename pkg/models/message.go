package models

type Message struct {
	ID string `json:"id"`
	// Conversation is a back-reference to the owning conversation. The
	// conversation owns the message list; this field is denormalized for
	// convenience only.
	Conversation string `json:"conversation"`
	// AgentID identifies the posting persona, or "user" for the human.
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name,omitempty"`
	Content   string `json:"content"`
	// TS is the creation timestamp (ns), assigned on append and immutable.
	TS int64 `json:"ts"`
}
