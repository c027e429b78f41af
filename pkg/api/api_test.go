package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"flux/pkg/logger"
	"flux/pkg/models"
	"flux/pkg/respond"
	"flux/pkg/store"
)

func init() { logger.Init() }

// newTestServer serves the full v1 router over a fresh store. The responder
// carries no API key, so /chat runs in its fallback mode without any
// upstream traffic.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	if err := store.Open(filepath.Join(t.TempDir(), "db")); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	srv := httptest.NewServer(Handler(respond.New(respond.Config{})))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader([]byte("{}"))
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp
}

func TestConversationLifecycle(t *testing.T) {
	srv := newTestServer(t)

	var c models.Conversation
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/conversations", map[string]string{"title": "Sprint Planning", "participant": "user"}, &c)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	if c.ID == "" || c.Title != "Sprint Planning" {
		t.Fatalf("unexpected conversation %+v", c)
	}

	var m models.Message
	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/conversations/"+c.ID+"/messages",
		map[string]string{"agent_name": "You", "content": "Let's plan the sprint"}, &m)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("message status = %d", resp.StatusCode)
	}
	if m.AgentID != "user" {
		t.Fatalf("agent_id should default to user, got %q", m.AgentID)
	}

	var listing struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/v1/conversations", nil, &listing)
	if len(listing.Conversations) != 1 || listing.Conversations[0].ID != c.ID {
		t.Fatalf("unexpected listing %+v", listing)
	}
	if len(listing.Conversations[0].Messages) != 1 {
		t.Fatalf("expected the message in the listing, got %+v", listing.Conversations[0].Messages)
	}
}

func TestGetUnknownConversation(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/conversations/conv-nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestBookmarkToggleRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	var c models.Conversation
	doJSON(t, http.MethodPost, srv.URL+"/v1/conversations", nil, &c)

	var out struct {
		Bookmarked bool `json:"bookmarked"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/v1/conversations/"+c.ID+"/bookmark", nil, &out)
	if !out.Bookmarked {
		t.Fatalf("first toggle should bookmark")
	}
	doJSON(t, http.MethodPost, srv.URL+"/v1/conversations/"+c.ID+"/bookmark", nil, &out)
	if out.Bookmarked {
		t.Fatalf("second toggle should clear the bookmark")
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/conversations/conv-nope/bookmark", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown id toggle status = %d, want 404", resp.StatusCode)
	}
}

func TestMessageListingLimit(t *testing.T) {
	srv := newTestServer(t)
	var c models.Conversation
	doJSON(t, http.MethodPost, srv.URL+"/v1/conversations", nil, &c)
	for i := 0; i < 5; i++ {
		doJSON(t, http.MethodPost, srv.URL+"/v1/conversations/"+c.ID+"/messages",
			map[string]string{"content": fmt.Sprintf("message %d", i)}, nil)
	}

	var out struct {
		Messages []models.Message `json:"messages"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/v1/conversations/"+c.ID+"/messages?limit=2", nil, &out)
	if len(out.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(out.Messages))
	}
	if out.Messages[1].Content != "message 4" {
		t.Fatalf("limit should keep the newest tail, got %+v", out.Messages)
	}
}

func TestSearchQueryParameter(t *testing.T) {
	srv := newTestServer(t)
	var a, b models.Conversation
	doJSON(t, http.MethodPost, srv.URL+"/v1/conversations", map[string]string{"title": "Deployment Review"}, &a)
	doJSON(t, http.MethodPost, srv.URL+"/v1/conversations", map[string]string{"title": "Sprint Planning"}, &b)

	var out struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/v1/conversations?q=deploy", nil, &out)
	if len(out.Conversations) != 1 || out.Conversations[0].ID != a.ID {
		t.Fatalf("unexpected search result %+v", out.Conversations)
	}

	// a miss lists as an empty array, same shape as the unfiltered listing
	resp, err := http.Get(srv.URL + "/v1/conversations?q=xyzzy")
	if err != nil {
		t.Fatalf("search miss: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(buf.String(), `"conversations":[]`) {
		t.Fatalf("search miss should serialize as an empty array: %s", buf.String())
	}
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer(t)
	var c models.Conversation
	doJSON(t, http.MethodPost, srv.URL+"/v1/conversations", map[string]string{"title": "Sprint Planning"}, &c)
	doJSON(t, http.MethodPost, srv.URL+"/v1/conversations/"+c.ID+"/messages",
		map[string]string{"agent_name": "You", "content": "hello"}, nil)

	resp, err := http.Get(srv.URL + "/v1/conversations/" + c.ID + "/export?format=markdown")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Fatalf("content type = %q", ct)
	}
	cd := resp.Header.Get("Content-Disposition")
	if !strings.Contains(cd, "Sprint_Planning_") || !strings.Contains(cd, ".md") {
		t.Fatalf("content disposition = %q", cd)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(buf.String(), "# Sprint Planning") {
		t.Fatalf("markdown body missing title:\n%s", buf.String())
	}

	bad := doJSON(t, http.MethodGet, srv.URL+"/v1/conversations/"+c.ID+"/export?format=pdf", nil, nil)
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown format status = %d, want 400", bad.StatusCode)
	}
}

func TestAgentContextEndpoints(t *testing.T) {
	srv := newTestServer(t)
	var c models.Conversation
	doJSON(t, http.MethodPost, srv.URL+"/v1/conversations", nil, &c)

	var bag map[string]any
	doJSON(t, http.MethodGet, srv.URL+"/v1/conversations/"+c.ID+"/context/developer", nil, &bag)
	if len(bag) != 0 {
		t.Fatalf("fresh bag should be empty, got %v", bag)
	}

	doJSON(t, http.MethodPost, srv.URL+"/v1/conversations/"+c.ID+"/context/developer",
		map[string]any{"branch": "main", "open_files": 3}, &bag)
	if bag["branch"] != "main" {
		t.Fatalf("merge result missing branch: %v", bag)
	}

	// second merge keeps earlier keys
	doJSON(t, http.MethodPost, srv.URL+"/v1/conversations/"+c.ID+"/context/developer",
		map[string]any{"last_test": "pass"}, &bag)
	if bag["branch"] != "main" || bag["last_test"] != "pass" {
		t.Fatalf("merge should union keys, got %v", bag)
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/conversations/conv-nope/context/developer",
		map[string]any{"k": "v"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("merge into unknown conversation status = %d, want 404", resp.StatusCode)
	}
}

func TestChatFallbackTurn(t *testing.T) {
	srv := newTestServer(t)

	var out struct {
		Conversation string                 `json:"conversation"`
		Primary      string                 `json:"primary"`
		Responses    []models.AgentResponse `json:"responses"`
		Configured   bool                   `json:"configured"`
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/chat", map[string]string{"message": "Neymar, please review this code"}, &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d", resp.StatusCode)
	}
	if out.Configured {
		t.Fatalf("turn should be unconfigured in tests")
	}
	if out.Primary != "developer" {
		t.Fatalf("primary = %q, want developer", out.Primary)
	}
	if len(out.Responses) != 1 {
		t.Fatalf("fallback turn should carry one response, got %d", len(out.Responses))
	}
	if out.Conversation == "" {
		t.Fatalf("chat should have created a conversation")
	}

	// both the user message and the fallback response were persisted
	var c models.Conversation
	doJSON(t, http.MethodGet, srv.URL+"/v1/conversations/"+out.Conversation, nil, &c)
	if len(c.Messages) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(c.Messages))
	}
	if c.Messages[0].AgentID != "user" || c.Messages[1].AgentID != "developer" {
		t.Fatalf("unexpected transcript %+v", c.Messages)
	}
	if !c.HasParticipant("developer") {
		t.Fatalf("responder should have joined the participants: %v", c.Participants)
	}
}

func TestChatIntoExistingConversation(t *testing.T) {
	srv := newTestServer(t)
	var c models.Conversation
	doJSON(t, http.MethodPost, srv.URL+"/v1/conversations", map[string]string{"title": "Standup"}, &c)

	var out struct {
		Conversation string `json:"conversation"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/v1/chat", map[string]string{"message": "status please", "conversation": c.ID}, &out)
	if out.Conversation != c.ID {
		t.Fatalf("chat should reuse the conversation, got %q", out.Conversation)
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/chat", map[string]string{"message": "hi", "conversation": "conv-nope"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown conversation status = %d, want 404", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/chat", map[string]string{}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty message status = %d, want 400", resp.StatusCode)
	}
}

func TestPersonaListing(t *testing.T) {
	srv := newTestServer(t)
	var out struct {
		Personas map[string]struct {
			Name   string `json:"name"`
			Role   string `json:"role"`
			Model  string `json:"model"`
			Status string `json:"status"`
		} `json:"personas"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/v1/personas", nil, &out)
	if len(out.Personas) != 7 {
		t.Fatalf("expected 7 personas, got %d", len(out.Personas))
	}
	dev, ok := out.Personas["developer"]
	if !ok {
		t.Fatalf("developer persona missing: %v", out.Personas)
	}
	if dev.Name != "Neymar (Senior Developer)" || dev.Status != "online" {
		t.Fatalf("unexpected developer entry %+v", dev)
	}
}
