package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"flux/pkg/logger"
	"flux/pkg/models"
	"flux/pkg/respond"
	"flux/pkg/store"
	"flux/pkg/utils"
)

// RegisterChat registers the multi-agent chat route on the provided router.
func RegisterChat(r *mux.Router, rsp *respond.Responder) {
	h := &chatHandler{rsp: rsp}
	r.HandleFunc("/chat", h.post).Methods(http.MethodPost)
}

type chatHandler struct {
	rsp *respond.Responder
}

type chatRequest struct {
	Message string `json:"message"`
	// Conversation names an existing conversation to append the turn to.
	// When empty a new conversation is created for the turn.
	Conversation string `json:"conversation,omitempty"`
}

type chatResponse struct {
	Conversation  string                 `json:"conversation"`
	Primary       string                 `json:"primary"`
	Collaborators []string               `json:"collaborators"`
	Responses     []models.AgentResponse `json:"responses"`
	Configured    bool                   `json:"configured"`
}

// post handles POST /chat: run one multi-agent turn for the user message
// and persist the user message plus every persona response into the
// conversation. One persona's upstream failure never fails the request.
func (h *chatHandler) post(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Message == "" {
		utils.JSONError(w, http.StatusBadRequest, "message is required")
		return
	}

	convID := req.Conversation
	if convID == "" {
		c := store.CreateConversation(titleFromMessage(req.Message), "user")
		convID = c.ID
	} else if _, err := store.Get(convID); err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}

	if _, err := store.AddMessage(convID, "user", "You", req.Message); err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}

	turn := h.rsp.Respond(r.Context(), req.Message)
	for _, resp := range turn.Responses {
		if _, err := store.AddMessage(convID, resp.Agent, resp.AgentName, resp.Message); err != nil {
			// the conversation existed moments ago; log and keep going so
			// the client still receives the full turn
			logger.Error("turn_persist_failed", "conversation", convID, "agent", resp.Agent, "error", err)
		}
	}

	_ = utils.JSONWrite(w, http.StatusOK, chatResponse{
		Conversation:  convID,
		Primary:       turn.Primary,
		Collaborators: turn.Collaborators,
		Responses:     turn.Responses,
		Configured:    turn.Configured,
	})
}

// titleFromMessage derives a conversation title from the first words of the
// user message.
func titleFromMessage(msg string) string {
	const max = 48
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max]) + "..."
}
