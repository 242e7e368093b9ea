package domain

// SmartFlow is the aggregated directional capital flow of smart-classified
// wallets in one market over a trailing window. It is the one signal the
// alerting layer consumes.
type SmartFlow struct {
	ConditionID      string  `json:"conditionId"`
	AsOf             int64   `json:"ts"` // unix seconds at aggregation time
	WindowSec        int64   `json:"window_sec"`
	NetUSD           float64 `json:"smart_net_usd"`
	VolumeUSD        float64 `json:"smart_vol_usd"`
	SmartTradeCount  int64   `json:"smart_trades"`
	SmartWalletCount int64   `json:"smart_wallets"`
}
