package types

import (
	"fmt"

	"github.com/google/uuid"
)

// Row is the ingestion contract for a single utterance-to-be. Rows are
// assumed to arrive in true conversational order; callers sorting a source
// table (e.g. by timestamp) is a precondition the engine trusts rather
// than verifies.
type Row struct {
	ID      string         `json:"id,omitempty"`      // Optional unique identifier; assigned when absent
	Speaker string         `json:"speaker"`           // Required speaker name
	Group   string         `json:"group,omitempty"`   // Optional role/category for the speaker
	Text    string         `json:"text"`              // Required utterance text
	Meta    map[string]any `json:"meta,omitempty"`    // Arbitrary passthrough columns
}

// Utterance is a single turn in a conversation. Utterances are created
// once at ingestion and never mutated; TokenCounts is derived from Text
// by the tokenization collaborator and cached here.
type Utterance struct {
	ID          string         `json:"id"`             // Unique identifier
	OrderIndex  int            `json:"order_index"`    // Position in conversation order (dense 0..N-1)
	Speaker     string         `json:"speaker"`        // Speaker name
	Group       string         `json:"group,omitempty"` // Role/category, empty when not provided
	Text        string         `json:"text"`           // Raw utterance text
	TokenCounts map[string]int `json:"token_counts"`   // term -> occurrence count within this utterance
	Meta        map[string]any `json:"meta,omitempty"` // Passthrough columns, opaque to the engine
}

// TokenizeFunc converts raw utterance text into term occurrence counts.
// Tokenization itself is a collaborator concern; internal/text provides
// the default implementation.
type TokenizeFunc func(text string) map[string]int

// Conversation is an ordered sequence of utterances plus the
// speaker-to-group mapping observed at ingestion. Order is conversation
// order, not creation order.
type Conversation struct {
	Utterances    []Utterance       `json:"utterances"`
	SpeakerGroups map[string]string `json:"speaker_groups,omitempty"`
}

// NewConversation builds a Conversation from ingested rows. Each row must
// carry text and a speaker; rows without an explicit ID are assigned one.
// OrderIndex values form a dense 0..N-1 range matching sequence position.
func NewConversation(rows []Row, tokenize TokenizeFunc) (*Conversation, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyConversation
	}
	if tokenize == nil {
		return nil, fmt.Errorf("%w: tokenize function is required", ErrInvalidConfig)
	}

	conv := &Conversation{
		Utterances:    make([]Utterance, 0, len(rows)),
		SpeakerGroups: make(map[string]string),
	}
	seen := make(map[string]bool, len(rows))

	for i, row := range rows {
		if row.Text == "" {
			return nil, fmt.Errorf("%w: row %d has no text", ErrMissingField, i)
		}
		if row.Speaker == "" {
			return nil, fmt.Errorf("%w: row %d has no speaker", ErrMissingField, i)
		}

		id := row.ID
		if id == "" {
			// Ordinal-position prefix keeps assigned IDs readable in exports.
			id = fmt.Sprintf("utt-%d-%s", i, uuid.NewString()[:8])
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: %q at row %d", ErrDuplicateID, id, i)
		}
		seen[id] = true

		conv.Utterances = append(conv.Utterances, Utterance{
			ID:          id,
			OrderIndex:  i,
			Speaker:     row.Speaker,
			Group:       row.Group,
			Text:        row.Text,
			TokenCounts: tokenize(row.Text),
			Meta:        row.Meta,
		})

		// First-seen group wins; later rows cannot reassign a speaker.
		if row.Group != "" {
			if _, ok := conv.SpeakerGroups[row.Speaker]; !ok {
				conv.SpeakerGroups[row.Speaker] = row.Group
			}
		}
	}

	return conv, nil
}

// Len returns the number of utterances in the conversation.
func (c *Conversation) Len() int {
	return len(c.Utterances)
}

// Speakers returns distinct speaker names in first-appearance order.
func (c *Conversation) Speakers() []string {
	var speakers []string
	seen := make(map[string]bool)
	for _, u := range c.Utterances {
		if !seen[u.Speaker] {
			seen[u.Speaker] = true
			speakers = append(speakers, u.Speaker)
		}
	}
	return speakers
}

// Groups returns distinct group values in first-appearance order.
// Utterances without a group contribute the empty-string group.
func (c *Conversation) Groups() []string {
	var groups []string
	seen := make(map[string]bool)
	for _, u := range c.Utterances {
		g := c.GroupOf(u)
		if !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
	}
	return groups
}

// GroupOf resolves the group for an utterance: the utterance's own group
// if set, otherwise the speaker's mapped group, otherwise empty.
func (c *Conversation) GroupOf(u Utterance) string {
	if u.Group != "" {
		return u.Group
	}
	return c.SpeakerGroups[u.Speaker]
}

// ByID returns the utterance with the given ID, or an error when absent.
func (c *Conversation) ByID(id string) (Utterance, error) {
	for _, u := range c.Utterances {
		if u.ID == id {
			return u, nil
		}
	}
	return Utterance{}, fmt.Errorf("%w: %q", ErrUtteranceNotFound, id)
}
