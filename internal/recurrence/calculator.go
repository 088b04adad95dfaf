// Package recurrence derives recurrence metrics from a computed
// utterance similarity matrix: per-utterance scores along the
// (time scale, direction, speaker relation) axes, and person-to-person /
// group-to-group aggregate matrices.
package recurrence

import (
	"fmt"

	"github.com/lexfield/echomap/pkg/types"
)

// Calculator scores utterances against their conversational neighborhood.
// Window sums are used rather than means: sums stay additive with the
// grouped aggregation totals.
type Calculator struct {
	conv *types.Conversation
	sim  *types.Matrix
	cfg  types.AnalysisConfig
}

// NewCalculator pairs a conversation with its similarity matrix. The
// matrix dimension must match the conversation length.
func NewCalculator(conv *types.Conversation, sim *types.Matrix, cfg types.AnalysisConfig) (*Calculator, error) {
	if conv == nil || conv.Len() == 0 {
		return nil, types.ErrEmptyConversation
	}
	if sim == nil || sim.Size() != conv.Len() {
		return nil, fmt.Errorf("%w: similarity matrix size does not match conversation", types.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{conv: conv, sim: sim, cfg: cfg}, nil
}

// Score returns the recurrence score of one utterance along one axis
// combination: the sum of similarities to utterances inside the selected
// window that satisfy the direction and speaker-relation predicates.
// The utterance itself is always excluded. Windows truncate at the
// conversation boundaries; an empty window scores 0.
func (c *Calculator) Score(utteranceID string, scale types.TimeScale, dir types.Direction, rel types.SpeakerRelation) (float64, error) {
	u, err := c.conv.ByID(utteranceID)
	if err != nil {
		return 0, err
	}
	if !dir.Valid() {
		return 0, fmt.Errorf("%w: unknown direction %q", types.ErrInvalidConfig, dir)
	}
	if !rel.Valid() {
		return 0, fmt.Errorf("%w: unknown speaker_relation %q", types.ErrInvalidConfig, rel)
	}
	window, err := c.cfg.WindowFor(scale)
	if err != nil {
		return 0, err
	}
	return c.scoreAt(u.OrderIndex, window, dir, rel), nil
}

// All computes the full cross-product of axis combinations for every
// utterance, one long-form row each. Ordering is stable: utterances by
// conversation order, then short/medium/long, then forward/backward,
// then self/other.
func (c *Calculator) All() types.RecurrenceTable {
	combos := len(types.TimeScales()) * len(types.Directions()) * len(types.SpeakerRelations())
	table := make(types.RecurrenceTable, 0, c.conv.Len()*combos)

	for _, u := range c.conv.Utterances {
		for _, scale := range types.TimeScales() {
			window, _ := c.cfg.WindowFor(scale)
			for _, dir := range types.Directions() {
				for _, rel := range types.SpeakerRelations() {
					table = append(table, types.RecurrenceRow{
						UtteranceID:     u.ID,
						OrderIndex:      u.OrderIndex,
						Speaker:         u.Speaker,
						TimeScale:       scale,
						Direction:       dir,
						SpeakerRelation: rel,
						Score:           c.scoreAt(u.OrderIndex, window, dir, rel),
					})
				}
			}
		}
	}

	return table
}

func (c *Calculator) scoreAt(i, window int, dir types.Direction, rel types.SpeakerRelation) float64 {
	n := c.conv.Len()
	lo, hi := i+1, i+window
	if dir == types.DirectionBackward {
		lo, hi = i-window, i-1
	}
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}

	speaker := c.conv.Utterances[i].Speaker
	var score float64
	for j := lo; j <= hi; j++ {
		if j == i {
			continue
		}
		same := c.conv.Utterances[j].Speaker == speaker
		if (rel == types.RelationSelf) != same {
			continue
		}
		score += c.sim.At(i, j)
	}
	return score
}
