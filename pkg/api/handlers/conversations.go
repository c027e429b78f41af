package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"flux/pkg/export"
	"flux/pkg/store"
	"flux/pkg/utils"
)

// RegisterConversations registers all conversation-related HTTP routes on
// the provided router.
func RegisterConversations(r *mux.Router) {
	r.HandleFunc("/conversations", createConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations", listConversations).Methods(http.MethodGet)

	r.HandleFunc("/conversations/{id}", getConversation).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/bookmark", toggleBookmark).Methods(http.MethodPost)

	r.HandleFunc("/conversations/{id}/messages", createMessage).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/messages", listMessages).Methods(http.MethodGet)

	r.HandleFunc("/conversations/{id}/export", exportConversation).Methods(http.MethodGet)

	r.HandleFunc("/conversations/{id}/context/{agentID}", getAgentContext).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/context/{agentID}", mergeAgentContext).Methods(http.MethodPost)
}

// createConversation handles POST /conversations. Body: {title, participant}.
func createConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Participant string `json:"participant"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Title == "" {
		req.Title = "New Conversation"
	}
	c := store.CreateConversation(req.Title, req.Participant)
	_ = utils.JSONWrite(w, http.StatusCreated, c)
}

// listConversations handles GET /conversations. The optional "q" query
// parameter switches the listing to a case-insensitive search over titles,
// message contents and tags.
func listConversations(w http.ResponseWriter, r *http.Request) {
	var out any
	if q := r.URL.Query().Get("q"); q != "" {
		out = store.Search(q)
	} else {
		out = store.List()
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"conversations": out})
}

func getConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	c, err := store.Get(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, c)
}

// toggleBookmark handles POST /conversations/{id}/bookmark. Toggling twice
// restores the original value.
func toggleBookmark(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	val, err := store.ToggleBookmark(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"id": id, "bookmarked": val})
}

// createMessage handles POST /conversations/{id}/messages. Body:
// {agent_id, agent_name, content}. The server assigns id and timestamp.
func createMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		AgentID   string `json:"agent_id"`
		AgentName string `json:"agent_name"`
		Content   string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.AgentID == "" {
		req.AgentID = "user"
	}
	m, err := store.AddMessage(id, req.AgentID, req.AgentName, req.Content)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

func listMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	c, err := store.Get(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	msgs := c.Messages
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		if lim, err := strconv.Atoi(limStr); err == nil && lim >= 0 && lim < len(msgs) {
			msgs = msgs[len(msgs)-lim:]
		}
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"conversation": id, "messages": msgs})
}

// exportConversation handles GET /conversations/{id}/export?format=json|markdown.
// The export is read-only; only the suggested filename carries the export date.
func exportConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatJSON
	}
	c, err := store.Get(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	data, err := export.Conversation(c, format)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctype := "application/json"
	if format == export.FormatMarkdown {
		ctype = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(c, format, time.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// getAgentContext never fails: absent conversations or bags return {}.
func getAgentContext(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bag := store.GetAgentContext(vars["id"], vars["agentID"])
	_ = utils.JSONWrite(w, http.StatusOK, bag)
}

// mergeAgentContext shallow-merges the posted object into the agent's bag.
func mergeAgentContext(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := store.MergeAgentContext(vars["id"], vars["agentID"], partial); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, store.GetAgentContext(vars["id"], vars["agentID"]))
}
