package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"flux/pkg/logger"
	"flux/pkg/models"
	"flux/pkg/utils"
)

// ErrNotFound is returned when a referenced conversation id does not exist.
// Callers recover from it (surface a "not found" reply); it is never fatal
// to the store.
var ErrNotFound = errors.New("conversation not found")

// Conversations are stored one record each under "conv:<id>". Every
// mutation re-serializes the whole conversation record; Pebble makes the
// record write atomic, so a failed append never leaves a partial entry.
const keyPrefix = "conv:"

var (
	db     *pebble.DB
	dbPath string

	mu     sync.Mutex
	convs  map[string]*models.Conversation
	order  []string // conversation ids, newest first
	opened bool
	// memOnly is set when the durable layer is unavailable; the store then
	// keeps serving from memory for the rest of the session.
	memOnly bool
)

// Open opens (or creates) the Pebble database at path and rehydrates the
// in-memory index from it. A database that cannot be opened, or individual
// records that cannot be parsed, degrade the store instead of failing it:
// Open always leaves the store usable and returns nil.
func Open(path string) error {
	mu.Lock()
	defer mu.Unlock()
	convs = make(map[string]*models.Conversation)
	order = nil
	opened = true
	memOnly = false
	dbPath = path

	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Warn("persistence_unavailable", "path", path, "error", err)
		db = nil
		memOnly = true
		return nil
	}
	rehydrate()
	logger.Info("store_opened", "path", path, "conversations", len(order))
	return nil
}

// rehydrate loads every conversation record. Corrupt records are skipped
// with a warning; they must not prevent startup. Caller holds mu.
func rehydrate() {
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		logger.Warn("store_rehydrate_failed", "error", err)
		return
	}
	defer iter.Close()
	prefix := []byte(keyPrefix)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var c models.Conversation
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			logger.Warn("store_skip_corrupt_record", "key", string(iter.Key()), "error", err)
			continue
		}
		if c.ID == "" {
			logger.Warn("store_skip_record_without_id", "key", string(iter.Key()))
			continue
		}
		cc := c
		convs[c.ID] = &cc
		order = append(order, c.ID)
	}
	if err := iter.Error(); err != nil {
		logger.Warn("store_rehydrate_iter_error", "error", err)
	}
	// newest first; ids carry a creation sequence, so they break ties when
	// two conversations share a timestamp
	sort.SliceStable(order, func(i, j int) bool {
		a, b := convs[order[i]], convs[order[j]]
		if a.CreatedTS != b.CreatedTS {
			return a.CreatedTS > b.CreatedTS
		}
		if len(a.ID) != len(b.ID) {
			return len(a.ID) > len(b.ID)
		}
		return a.ID > b.ID
	})
}

// Close closes the underlying database if present.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	opened = false
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	if err != nil {
		return err
	}
	logger.Info("store_closed")
	return nil
}

// Ready reports whether the store has been opened (possibly memory-only).
func Ready() bool {
	mu.Lock()
	defer mu.Unlock()
	return opened
}

// persist writes the conversation record through to Pebble. A write failure
// flips the store into memory-only mode; the mutation itself stands.
// Caller holds mu.
func persist(c *models.Conversation) {
	if db == nil || memOnly {
		return
	}
	data, err := json.Marshal(c)
	if err != nil {
		logger.Error("store_marshal_failed", "conversation", c.ID, "error", err)
		return
	}
	if err := db.Set([]byte(keyPrefix+c.ID), data, pebble.Sync); err != nil {
		logger.Warn("persistence_unavailable", "conversation", c.ID, "error", err)
		memOnly = true
	}
}

// CreateConversation constructs a new empty conversation, inserts it at the
// front of the store ordering and returns it. It always succeeds.
func CreateConversation(title, initialParticipant string) models.Conversation {
	mu.Lock()
	defer mu.Unlock()
	now := time.Now().UTC().UnixNano()
	c := &models.Conversation{
		ID:             utils.GenConversationID(),
		Title:          title,
		Messages:       []models.Message{},
		Participants:   []string{},
		CreatedTS:      now,
		LastActivityTS: now,
		Context:        map[string]map[string]any{},
	}
	if initialParticipant != "" {
		c.Participants = append(c.Participants, initialParticipant)
	}
	convs[c.ID] = c
	order = append([]string{c.ID}, order...)
	persist(c)
	logger.Info("conversation_created", "id", c.ID, "title", title)
	return clone(c)
}

// AddMessage assigns a fresh id and timestamp to the message fields given
// and appends the result to the named conversation, bumping last activity
// and the participant set. Unknown ids return ErrNotFound and leave the
// store untouched.
func AddMessage(convID, agentID, agentName, content string) (models.Message, error) {
	mu.Lock()
	defer mu.Unlock()
	c, ok := convs[convID]
	if !ok {
		return models.Message{}, ErrNotFound
	}
	ts := time.Now().UTC().UnixNano()
	// keep the per-conversation sequence non-decreasing even if the clock
	// steps backwards
	if n := len(c.Messages); n > 0 && c.Messages[n-1].TS > ts {
		ts = c.Messages[n-1].TS
	}
	m := models.Message{
		ID:           utils.GenMessageID(),
		Conversation: convID,
		AgentID:      agentID,
		AgentName:    agentName,
		Content:      content,
		TS:           ts,
	}
	c.Messages = append(c.Messages, m)
	c.LastActivityTS = ts
	if !c.HasParticipant(agentID) {
		c.Participants = append(c.Participants, agentID)
	}
	persist(c)
	return m, nil
}

// ToggleBookmark flips the bookmarked flag and returns the new value.
// Unknown ids return ErrNotFound (documented choice; consistent with
// AddMessage and MergeAgentContext).
func ToggleBookmark(convID string) (bool, error) {
	mu.Lock()
	defer mu.Unlock()
	c, ok := convs[convID]
	if !ok {
		return false, ErrNotFound
	}
	c.Bookmarked = !c.Bookmarked
	persist(c)
	return c.Bookmarked, nil
}

// GetAgentContext returns the stored per-agent bag, or an empty bag when
// either the conversation or the bag is absent. It never fails.
func GetAgentContext(convID, agentID string) map[string]any {
	mu.Lock()
	defer mu.Unlock()
	c, ok := convs[convID]
	if !ok || c.Context == nil {
		return map[string]any{}
	}
	bag, ok := c.Context[agentID]
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(bag))
	for k, v := range bag {
		out[k] = v
	}
	return out
}

// MergeAgentContext shallow-merges partial into the agent's bag: keys in
// partial overwrite, other keys stay. Unknown ids return ErrNotFound.
func MergeAgentContext(convID, agentID string, partial map[string]any) error {
	mu.Lock()
	defer mu.Unlock()
	c, ok := convs[convID]
	if !ok {
		return ErrNotFound
	}
	if c.Context == nil {
		c.Context = map[string]map[string]any{}
	}
	bag, ok := c.Context[agentID]
	if !ok {
		bag = map[string]any{}
		c.Context[agentID] = bag
	}
	for k, v := range partial {
		bag[k] = v
	}
	persist(c)
	return nil
}

// Get returns a snapshot of the named conversation.
func Get(convID string) (models.Conversation, error) {
	mu.Lock()
	defer mu.Unlock()
	c, ok := convs[convID]
	if !ok {
		return models.Conversation{}, ErrNotFound
	}
	return clone(c), nil
}

// List returns snapshots of all conversations, newest first.
func List() []models.Conversation {
	mu.Lock()
	defer mu.Unlock()
	out := make([]models.Conversation, 0, len(order))
	for _, id := range order {
		out = append(out, clone(convs[id]))
	}
	return out
}

// Search returns the conversations whose title, message contents or tags
// contain query (case-insensitive), in the store's current ordering.
func Search(query string) []models.Conversation {
	mu.Lock()
	defer mu.Unlock()
	q := strings.ToLower(query)
	out := []models.Conversation{}
	for _, id := range order {
		c := convs[id]
		if matches(c, q) {
			out = append(out, clone(c))
		}
	}
	return out
}

func matches(c *models.Conversation, q string) bool {
	if strings.Contains(strings.ToLower(c.Title), q) {
		return true
	}
	for _, m := range c.Messages {
		if strings.Contains(strings.ToLower(m.Content), q) {
			return true
		}
	}
	for _, t := range c.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// clone deep-copies a conversation so callers never alias store internals.
func clone(c *models.Conversation) models.Conversation {
	out := *c
	out.Messages = append([]models.Message(nil), c.Messages...)
	out.Participants = append([]string(nil), c.Participants...)
	out.Tags = append([]string(nil), c.Tags...)
	if c.Context != nil {
		out.Context = make(map[string]map[string]any, len(c.Context))
		for agent, bag := range c.Context {
			nb := make(map[string]any, len(bag))
			for k, v := range bag {
				nb[k] = v
			}
			out.Context[agent] = nb
		}
	}
	return out
}
