package domain

// PriceSnapshot is a point-in-time proxy estimate of a market's
// probability-of-YES, derived from the most recent trade rather than an order
// book. One snapshot exists per (market, timestamp); a later write at the
// same timestamp overwrites. Downstream consumers must treat the value as
// directional only.
type PriceSnapshot struct {
	ConditionID string  `json:"conditionId"`
	Timestamp   int64   `json:"ts"` // unix seconds
	YesPrice    float64 `json:"yes_price"`
}

// ClampProbability bounds p to [0,1].
func ClampProbability(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
