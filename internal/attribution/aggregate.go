package attribution

// ChannelBreakdown accumulates attributed credit for one channel across
// many journeys.
type ChannelBreakdown struct {
	Channel     string  `json:"channel"`
	FirstTouch  int     `json:"first_touch"`
	LastTouch   int     `json:"last_touch"`
	Assisted    int     `json:"assisted"`
	Conversions float64 `json:"conversions"` // fractional, weight-summed
}

// Aggregator folds journeys into per-channel breakdowns. Channels are
// reported in the order they were first seen.
type Aggregator struct {
	order    []string
	channels map[string]*ChannelBreakdown
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{channels: make(map[string]*ChannelBreakdown)}
}

// Add attributes one converted journey and folds the credits in.
func (a *Aggregator) Add(journey []Touchpoint) error {
	credits, err := Attribute(journey)
	if err != nil {
		return err
	}

	for _, c := range credits {
		bd, ok := a.channels[c.Channel]
		if !ok {
			bd = &ChannelBreakdown{Channel: c.Channel}
			a.channels[c.Channel] = bd
			a.order = append(a.order, c.Channel)
		}
		if c.FirstTouch {
			bd.FirstTouch++
		}
		if c.LastTouch {
			bd.LastTouch++
		}
		if c.Assisted {
			bd.Assisted++
		}
		bd.Conversions += c.Weight
	}

	return nil
}

// Breakdown returns the per-channel totals in first-seen order.
func (a *Aggregator) Breakdown() []ChannelBreakdown {
	out := make([]ChannelBreakdown, 0, len(a.order))
	for _, ch := range a.order {
		out = append(out, *a.channels[ch])
	}
	return out
}
