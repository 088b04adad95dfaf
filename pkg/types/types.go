// Package types defines the core data structures for the Echomap
// conceptual-recurrence engine. These types represent conversations,
// utterances, similarity matrices and the axis selectors used when
// deriving recurrence metrics.
package types

// TimeScale selects how many neighboring utterances are considered
// when looking for recurring concepts.
type TimeScale string

// Direction selects whether the recurrence window looks at utterances
// that come after (forward) or before (backward) the utterance in question.
type Direction string

// SpeakerRelation restricts the recurrence window to utterances by the
// same speaker ("self") or a different speaker ("other").
type SpeakerRelation string

// GroupingAttribute selects the attribute used when aggregating the
// similarity matrix into a person-to-person or group-to-group matrix.
type GroupingAttribute string

// Time scale constants. The concrete window sizes behind each scale are
// configured in AnalysisConfig; the defaults are 5, 10 and 20 utterances.
const (
	// TimeScaleShort considers only the nearest neighboring utterances
	TimeScaleShort TimeScale = "short"

	// TimeScaleMedium considers a mid-range window of utterances
	TimeScaleMedium TimeScale = "medium"

	// TimeScaleLong considers a wide window of utterances
	TimeScaleLong TimeScale = "long"
)

// Direction constants
const (
	// DirectionForward looks at utterances later in the conversation
	DirectionForward Direction = "forward"

	// DirectionBackward looks at utterances earlier in the conversation
	DirectionBackward Direction = "backward"
)

// Speaker relation constants
const (
	// RelationSelf restricts the window to the same speaker
	RelationSelf SpeakerRelation = "self"

	// RelationOther restricts the window to different speakers
	RelationOther SpeakerRelation = "other"
)

// Grouping attribute constants
const (
	// GroupBySpeaker aggregates recurrence person-to-person
	GroupBySpeaker GroupingAttribute = "speaker"

	// GroupByGroup aggregates recurrence group-to-group (role/category)
	GroupByGroup GroupingAttribute = "group"
)

// TimeScales lists all time scales in their stable enumeration order.
// This ordering is part of the long-form recurrence table contract and
// must not change between runs.
func TimeScales() []TimeScale {
	return []TimeScale{TimeScaleShort, TimeScaleMedium, TimeScaleLong}
}

// Directions lists both directions in stable enumeration order.
func Directions() []Direction {
	return []Direction{DirectionForward, DirectionBackward}
}

// SpeakerRelations lists both speaker relations in stable enumeration order.
func SpeakerRelations() []SpeakerRelation {
	return []SpeakerRelation{RelationSelf, RelationOther}
}

// Valid reports whether the time scale is one of the recognized values.
func (s TimeScale) Valid() bool {
	switch s {
	case TimeScaleShort, TimeScaleMedium, TimeScaleLong:
		return true
	}
	return false
}

// Valid reports whether the direction is one of the recognized values.
func (d Direction) Valid() bool {
	return d == DirectionForward || d == DirectionBackward
}

// Valid reports whether the speaker relation is one of the recognized values.
func (r SpeakerRelation) Valid() bool {
	return r == RelationSelf || r == RelationOther
}

// Valid reports whether the grouping attribute is one of the recognized values.
func (g GroupingAttribute) Valid() bool {
	return g == GroupBySpeaker || g == GroupByGroup
}
