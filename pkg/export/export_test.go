package export

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"flux/pkg/models"
)

func sampleConversation() models.Conversation {
	base := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC).UnixNano()
	return models.Conversation{
		ID:             "conv-1-1",
		Title:          "Sprint Planning",
		Participants:   []string{"user", "project_manager"},
		CreatedTS:      base,
		LastActivityTS: base + int64(time.Minute),
		Messages: []models.Message{
			{ID: "msg-1-2", Conversation: "conv-1-1", AgentID: "user", AgentName: "You", Content: "What's the plan?", TS: base},
			{ID: "msg-1-3", Conversation: "conv-1-1", AgentID: "project_manager", AgentName: "Modric (Project Manager)", Content: "Two week sprint, three goals.", TS: base + int64(time.Minute)},
		},
		Context: map[string]map[string]any{"project_manager": {"sprint": "42"}},
	}
}

func TestJSONRoundTrip(t *testing.T) {
	c := sampleConversation()
	data, err := JSON(c)
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var back models.Conversation
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// context values round-trip as generic JSON types; compare separately
	wantCtx, gotCtx := c.Context, back.Context
	c.Context, back.Context = nil, nil
	if !reflect.DeepEqual(c, back) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", c, back)
	}
	if gotCtx["project_manager"]["sprint"] != wantCtx["project_manager"]["sprint"] {
		t.Fatalf("context round trip mismatch: %v vs %v", gotCtx, wantCtx)
	}
}

func TestJSONDeterministic(t *testing.T) {
	c := sampleConversation()
	a, _ := JSON(c)
	b, _ := JSON(c)
	if string(a) != string(b) {
		t.Fatalf("same state must export identical bytes")
	}
}

func TestMarkdownTranscript(t *testing.T) {
	got := string(Markdown(sampleConversation()))

	for _, want := range []string{
		"# Sprint Planning\n",
		"**Date:** 2025-03-14 09:27:53\n",
		"**Participants:** user, project_manager\n",
		"---\n",
		"### You - 09:26:53\n",
		"What's the plan?\n",
		"### Modric (Project Manager) - 09:27:53\n",
		"Two week sprint, three goals.\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("markdown missing %q:\n%s", want, got)
		}
	}
}

func TestMarkdownFallsBackToAgentID(t *testing.T) {
	c := sampleConversation()
	c.Messages[0].AgentName = ""
	if got := string(Markdown(c)); !strings.Contains(got, "### user - ") {
		t.Fatalf("expected agent id heading fallback:\n%s", got)
	}
}

func TestConversationUnknownFormat(t *testing.T) {
	if _, err := Conversation(sampleConversation(), "pdf"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2025, 3, 14, 23, 0, 0, 0, time.UTC)
	c := sampleConversation()
	if got := Filename(c, FormatJSON, now); got != "Sprint_Planning_2025-03-14.json" {
		t.Fatalf("unexpected filename %q", got)
	}
	if got := Filename(c, FormatMarkdown, now); got != "Sprint_Planning_2025-03-14.md" {
		t.Fatalf("unexpected filename %q", got)
	}
	c.Title = ""
	if got := Filename(c, FormatJSON, now); got != "conv-1-1_2025-03-14.json" {
		t.Fatalf("empty title should fall back to id, got %q", got)
	}
}
