// Package attribution distributes conversion credit across the marketing
// touchpoints of a customer journey using a position-based multi-touch
// model: the first touch earns 0.4, the last touch 0.3, and every
// touchpoint in between splits the remaining 0.3 evenly.
package attribution

import (
	"errors"
	"time"
)

// Position-based model weights.
const (
	firstTouchWeight = 0.4
	lastTouchWeight  = 0.3
)

// ErrEmptyJourney is returned when a journey has no touchpoints.
var ErrEmptyJourney = errors.New("journey has no touchpoints")

// Touchpoint is a single marketing interaction within a journey.
type Touchpoint struct {
	Channel    string    `json:"channel"`
	Campaign   string    `json:"campaign"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Credit is one touchpoint's share of a conversion.
type Credit struct {
	Touchpoint
	Position   int     `json:"position"`
	Weight     float64 `json:"weight"`
	FirstTouch bool    `json:"first_touch"`
	LastTouch  bool    `json:"last_touch"`
	Assisted   bool    `json:"assisted"`
}

// Attribute splits one conversion's credit across an ordered journey.
// Weights always sum to 1.0:
//   - one touchpoint: it is both first and last, weight 1.0;
//   - two touchpoints: no assists exist to absorb the 0.3 residual, so it
//     is split evenly between them (0.55 first, 0.45 last);
//   - three or more: 0.4 / 0.3 / residual shared by the assists.
func Attribute(journey []Touchpoint) ([]Credit, error) {
	n := len(journey)
	if n == 0 {
		return nil, ErrEmptyJourney
	}

	credits := make([]Credit, n)
	for i, tp := range journey {
		credits[i] = Credit{Touchpoint: tp, Position: i}
	}

	switch n {
	case 1:
		credits[0].FirstTouch = true
		credits[0].LastTouch = true
		credits[0].Weight = 1.0
	case 2:
		residual := 1.0 - firstTouchWeight - lastTouchWeight
		credits[0].FirstTouch = true
		credits[0].Weight = firstTouchWeight + residual/2
		credits[1].LastTouch = true
		credits[1].Weight = lastTouchWeight + residual/2
	default:
		credits[0].FirstTouch = true
		credits[0].Weight = firstTouchWeight
		credits[n-1].LastTouch = true
		credits[n-1].Weight = lastTouchWeight

		assistedWeight := (1.0 - firstTouchWeight - lastTouchWeight) / float64(n-2)
		for i := 1; i < n-1; i++ {
			credits[i].Assisted = true
			credits[i].Weight = assistedWeight
		}
	}

	return credits, nil
}
