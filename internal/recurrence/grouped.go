package recurrence

import (
	"fmt"

	"github.com/lexfield/echomap/pkg/types"
)

// Grouped aggregates the similarity matrix over a grouping attribute
// into a directed square matrix: entry (A, B) is the total similarity
// mass over pairs (i, j) with i attributed to A, j attributed to B and
// i preceding j in conversation order. The direction encodes "whose
// concepts recur after whom", so the result is generally asymmetric.
func Grouped(conv *types.Conversation, sim *types.Matrix, attr types.GroupingAttribute) (*types.GroupedMatrix, error) {
	if conv == nil || conv.Len() == 0 {
		return nil, types.ErrEmptyConversation
	}
	if sim == nil || sim.Size() != conv.Len() {
		return nil, fmt.Errorf("%w: similarity matrix size does not match conversation", types.ErrInvalidConfig)
	}
	if !attr.Valid() {
		return nil, fmt.Errorf("%w: unknown grouping_attribute %q", types.ErrInvalidConfig, attr)
	}

	labelOf := func(u types.Utterance) string {
		if attr == types.GroupBySpeaker {
			return u.Speaker
		}
		return conv.GroupOf(u)
	}

	var labels []string
	if attr == types.GroupBySpeaker {
		labels = conv.Speakers()
	} else {
		labels = conv.Groups()
	}

	g := types.NewGroupedMatrix(labels)
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	n := conv.Len()
	for i := 0; i < n; i++ {
		a := index[labelOf(conv.Utterances[i])]
		for j := i + 1; j < n; j++ {
			b := index[labelOf(conv.Utterances[j])]
			g.Values[a][b] += sim.At(i, j)
		}
	}

	return g, nil
}

// Normalize returns the row-stochastic form of the matrix: each row is
// divided by its total so non-zero rows sum to 1. Rows with zero total
// stay all zero rather than becoming NaN.
func Normalize(g *types.GroupedMatrix) *types.GroupedMatrix {
	out := types.NewGroupedMatrix(g.Labels)
	totals := g.RowTotals()
	for i, row := range g.Values {
		if totals[i] == 0 {
			continue
		}
		for j, v := range row {
			out.Values[i][j] = v / totals[i]
		}
	}
	return out
}

// Percentage expresses each entry as a percentage of the grand total.
// A zero grand total (single-speaker or degenerate conversation) yields
// all zeros instead of dividing by zero.
func Percentage(g *types.GroupedMatrix) *types.GroupedMatrix {
	out := types.NewGroupedMatrix(g.Labels)
	total := g.GrandTotal()
	if total == 0 {
		return out
	}
	for i, row := range g.Values {
		for j, v := range row {
			out.Values[i][j] = v / total * 100
		}
	}
	return out
}
