package types

// RecurrenceRow is one entry of the long-form recurrence table: the
// recurrence score of a single utterance along one (time scale,
// direction, speaker relation) axis combination.
type RecurrenceRow struct {
	UtteranceID     string          `json:"utterance_id"`
	OrderIndex      int             `json:"order_index"`
	Speaker         string          `json:"speaker"`
	TimeScale       TimeScale       `json:"time_scale"`
	Direction       Direction       `json:"direction"`
	SpeakerRelation SpeakerRelation `json:"speaker_relation"`
	Score           float64         `json:"score"`
}

// RecurrenceTable is the full cross-product of axis combinations per
// utterance, one row each, in stable order: utterances by OrderIndex,
// then time scales short/medium/long, then directions forward/backward,
// then relations self/other. Downstream pivoting relies on this ordering
// and on the stable axis value names.
type RecurrenceTable []RecurrenceRow
