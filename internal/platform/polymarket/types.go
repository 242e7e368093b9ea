package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/smartflow/engine/internal/domain"
)

// flexInt64 unmarshals from a JSON number or numeric string; the data-api
// sends timestamps both ways depending on endpoint version.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt64(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	// Some deployments send fractional-second floats as strings.
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*f = flexInt64(int64(v))
	return nil
}

// flexFloat unmarshals from a JSON number or numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*f = flexFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// APITrade is a trade record as returned by the data-api /trades endpoint.
// The wallet arrives as proxyWallet on current deployments and user on older
// ones.
type APITrade struct {
	ConditionID string    `json:"conditionId"`
	Timestamp   flexInt64 `json:"timestamp"`
	ProxyWallet string    `json:"proxyWallet"`
	User        string    `json:"user"`
	Side        string    `json:"side"`
	Outcome     string    `json:"outcome"`
	Size        flexFloat `json:"size"`
	Price       flexFloat `json:"price"`
	TxHash      string    `json:"transactionHash"`
	Title       string    `json:"title"`
}

// ToDomain converts an APITrade to a domain.Trade. Side and outcome are
// normalized to their canonical casings; unknown values pass through
// unchanged and fall out later as undefined direction.
func (t *APITrade) ToDomain() domain.Trade {
	wallet := t.ProxyWallet
	if wallet == "" {
		wallet = t.User
	}
	return domain.Trade{
		ConditionID: t.ConditionID,
		Timestamp:   domain.NormalizeTimestamp(int64(t.Timestamp)),
		Wallet:      strings.ToLower(wallet),
		Side:        normalizeSide(t.Side),
		Outcome:     normalizeOutcome(t.Outcome),
		Size:        float64(t.Size),
		Price:       float64(t.Price),
		TxHash:      t.TxHash,
		Title:       t.Title,
	}
}

func normalizeSide(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case domain.SideBuy:
		return domain.SideBuy
	case domain.SideSell:
		return domain.SideSell
	default:
		return s
	}
}

func normalizeOutcome(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes":
		return domain.OutcomeYes
	case "no":
		return domain.OutcomeNo
	default:
		return s
	}
}

// APIMarket is a market as returned by the gamma /markets endpoints. Field
// names vary across gamma deployments; both spellings of the condition id
// are accepted and several volume/liquidity aliases are tried in order.
type APIMarket struct {
	ConditionID      string    `json:"conditionId"`
	ConditionIDSnake string    `json:"condition_id"`
	Slug             string    `json:"slug"`
	Title            string    `json:"title"`
	Question         string    `json:"question"`
	Volume24hr       flexFloat `json:"volume24hr"`
	Volume24h        flexFloat `json:"volume24h"`
	Volume           flexFloat `json:"volume"`
	VolumeUSD        flexFloat `json:"volumeUSD"`
	Liquidity        flexFloat `json:"liquidity"`
	LiquidityUSD     flexFloat `json:"liquidityUSD"`
}

// EffectiveConditionID returns whichever condition id spelling the response
// carried.
func (m *APIMarket) EffectiveConditionID() string {
	if m.ConditionID != "" {
		return m.ConditionID
	}
	return m.ConditionIDSnake
}

// ToDomain converts an APIMarket to a domain.Market.
func (m *APIMarket) ToDomain() domain.Market {
	title := m.Title
	if title == "" {
		title = m.Question
	}
	vol := float64(m.Volume24hr)
	if vol == 0 {
		vol = float64(m.Volume24h)
	}
	if vol == 0 {
		vol = float64(m.Volume)
	}
	if vol == 0 {
		vol = float64(m.VolumeUSD)
	}
	liq := float64(m.Liquidity)
	if liq == 0 {
		liq = float64(m.LiquidityUSD)
	}
	return domain.Market{
		ConditionID: m.EffectiveConditionID(),
		Slug:        m.Slug,
		Title:       title,
		Volume:      vol,
		Liquidity:   liq,
	}
}
