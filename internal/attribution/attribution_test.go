package attribution

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func journeyOf(channels ...string) []Touchpoint {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tps := make([]Touchpoint, len(channels))
	for i, ch := range channels {
		tps[i] = Touchpoint{Channel: ch, Campaign: "spring-launch", OccurredAt: base.Add(time.Duration(i) * time.Hour)}
	}
	return tps
}

func TestAttribute_EmptyJourney(t *testing.T) {
	_, err := Attribute(nil)
	assert.ErrorIs(t, err, ErrEmptyJourney)
}

func TestAttribute_SingleTouch(t *testing.T) {
	credits, err := Attribute(journeyOf("email"))
	require.NoError(t, err)
	require.Len(t, credits, 1)

	c := credits[0]
	assert.Equal(t, 1.0, c.Weight)
	assert.True(t, c.FirstTouch)
	assert.True(t, c.LastTouch)
	assert.False(t, c.Assisted)
}

func TestAttribute_TwoTouches(t *testing.T) {
	credits, err := Attribute(journeyOf("email", "paid"))
	require.NoError(t, err)
	require.Len(t, credits, 2)

	assert.InDelta(t, 0.55, credits[0].Weight, 1e-9)
	assert.InDelta(t, 0.45, credits[1].Weight, 1e-9)
	assert.True(t, credits[0].FirstTouch)
	assert.True(t, credits[1].LastTouch)
	assert.False(t, credits[0].Assisted)
	assert.False(t, credits[1].Assisted)
}

func TestAttribute_PositionBasedSplit(t *testing.T) {
	credits, err := Attribute(journeyOf("email", "social", "content", "paid"))
	require.NoError(t, err)
	require.Len(t, credits, 4)

	assert.InDelta(t, 0.4, credits[0].Weight, 1e-9)
	assert.InDelta(t, 0.15, credits[1].Weight, 1e-9)
	assert.InDelta(t, 0.15, credits[2].Weight, 1e-9)
	assert.InDelta(t, 0.3, credits[3].Weight, 1e-9)

	assert.True(t, credits[1].Assisted)
	assert.True(t, credits[2].Assisted)
	for i, c := range credits {
		assert.Equal(t, i, c.Position)
	}
}

func TestAttribute_WeightsSumToOne(t *testing.T) {
	for n := 1; n <= 12; n++ {
		t.Run(fmt.Sprintf("journey_len_%d", n), func(t *testing.T) {
			channels := make([]string, n)
			for i := range channels {
				channels[i] = fmt.Sprintf("channel-%d", i)
			}
			credits, err := Attribute(journeyOf(channels...))
			require.NoError(t, err)

			sum := 0.0
			for _, c := range credits {
				sum += c.Weight
			}
			assert.InDelta(t, 1.0, sum, 1e-6)
		})
	}
}

func TestAggregator_Breakdown(t *testing.T) {
	agg := NewAggregator()
	require.NoError(t, agg.Add(journeyOf("email", "social", "paid")))
	require.NoError(t, agg.Add(journeyOf("paid", "email")))
	require.NoError(t, agg.Add(journeyOf("social")))

	breakdown := agg.Breakdown()
	require.Len(t, breakdown, 3)

	// Channels come back in first-seen order.
	assert.Equal(t, "email", breakdown[0].Channel)
	assert.Equal(t, "social", breakdown[1].Channel)
	assert.Equal(t, "paid", breakdown[2].Channel)

	email := breakdown[0]
	assert.Equal(t, 1, email.FirstTouch)
	assert.Equal(t, 1, email.LastTouch)
	assert.Equal(t, 0, email.Assisted)
	assert.InDelta(t, 0.4+0.45, email.Conversions, 1e-9)

	social := breakdown[1]
	assert.Equal(t, 1, social.FirstTouch, "single-touch journey counts as first")
	assert.Equal(t, 1, social.LastTouch, "single-touch journey counts as last")
	assert.Equal(t, 1, social.Assisted)
	assert.InDelta(t, 0.3+1.0, social.Conversions, 1e-9)

	paid := breakdown[2]
	assert.Equal(t, 1, paid.FirstTouch)
	assert.Equal(t, 1, paid.LastTouch)
	assert.InDelta(t, 0.3+0.55, paid.Conversions, 1e-9)
}

func TestAggregator_TotalCreditMatchesJourneyCount(t *testing.T) {
	agg := NewAggregator()
	journeys := [][]Touchpoint{
		journeyOf("email"),
		journeyOf("email", "paid"),
		journeyOf("social", "email", "content", "paid"),
	}
	for _, j := range journeys {
		require.NoError(t, agg.Add(j))
	}

	total := 0.0
	for _, bd := range agg.Breakdown() {
		total += bd.Conversions
	}
	assert.InDelta(t, float64(len(journeys)), total, 1e-6)
}
