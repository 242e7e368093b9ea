package domain

// Market is a tracked binary-outcome prediction contract, as selected by the
// universe builder. Volume and liquidity are the ranking inputs captured at
// selection time, not live values.
type Market struct {
	ConditionID string  `json:"conditionId"`
	Slug        string  `json:"slug"`
	Title       string  `json:"title"`
	Volume      float64 `json:"volume"`
	Liquidity   float64 `json:"liquidity"`
}

// Universe is the persisted result of a universe selection run.
type Universe struct {
	Size    int      `json:"size"`
	Markets []Market `json:"markets"`
}
