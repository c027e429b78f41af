package models

// Conversation is the unit of persisted chat history: an append-only list of
// messages plus the metadata the UI needs to list, search and resume it.
type Conversation struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// Messages are append-only; individual entries are never edited or
	// removed once stored.
	Messages []Message `json:"messages"`
	// Participants holds every agent id that has posted into the
	// conversation; it only ever grows.
	Participants []string `json:"participants"`
	Bookmarked   bool     `json:"bookmarked"`
	// CreatedTS is the creation timestamp (ns), immutable.
	CreatedTS int64 `json:"created_ts"`
	// LastActivityTS is bumped on every message append (ns).
	LastActivityTS int64 `json:"last_activity_ts"`
	// Tags are free-text labels consulted by search. Nothing currently
	// populates them; they are an extension point.
	Tags []string `json:"tags,omitempty"`
	// Context maps agent id -> per-agent working state scoped to this
	// conversation.
	Context map[string]map[string]any `json:"context,omitempty"`
}

// HasParticipant reports whether the given agent id has posted here.
func (c *Conversation) HasParticipant(agentID string) bool {
	for _, p := range c.Participants {
		if p == agentID {
			return true
		}
	}
	return false
}
