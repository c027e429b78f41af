package models

// AgentResponse is one persona's contribution to a multi-agent turn.
type AgentResponse struct {
	Agent     string `json:"agent"`
	AgentName string `json:"agent_name"`
	Message   string `json:"message"`
	Model     string `json:"model,omitempty"`
	TS        int64  `json:"ts"`
	// Degraded marks a placeholder substituted for a failed upstream call;
	// the turn still completes for the remaining personas.
	Degraded bool `json:"degraded,omitempty"`
}

// Turn is one complete multi-agent response cycle for a single user message.
type Turn struct {
	Primary       string          `json:"primary"`
	Collaborators []string        `json:"collaborators"`
	Responses     []AgentResponse `json:"responses"`
	// Configured is false when no upstream credential was available and the
	// turn short-circuited to the fixed "not configured" reply.
	Configured bool `json:"configured"`
}
