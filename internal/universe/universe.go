// Package universe selects the set of markets the engine tracks and persists
// it as a JSON file that every mode loads at startup. Selection is a
// heuristic: pull a few gamma pages, keep markets with well-formed condition
// ids, rank by reported volume then liquidity, and truncate.
package universe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/smartflow/engine/internal/domain"
	"github.com/smartflow/engine/internal/platform/polymarket"
)

// maxPages bounds how many gamma pages one selection run pulls.
const maxPages = 5

// pageSize is the gamma page size used during selection.
const pageSize = 500

// MarketLister provides paginated market discovery.
type MarketLister interface {
	ListMarkets(ctx context.Context, limit, offset int) ([]polymarket.APIMarket, error)
}

// Builder selects and persists the tracked-market universe.
type Builder struct {
	lister MarketLister
	logger *slog.Logger
}

// NewBuilder creates a Builder over the given market lister.
func NewBuilder(lister MarketLister, logger *slog.Logger) *Builder {
	return &Builder{
		lister: lister,
		logger: logger.With(slog.String("component", "universe")),
	}
}

// Select pulls markets from gamma, keeps those with well-formed condition
// ids, ranks them by volume then liquidity descending, truncates to size,
// and writes the result to outPath.
func (b *Builder) Select(ctx context.Context, size int, outPath string) ([]domain.Market, error) {
	var cleaned []domain.Market
	for page := 0; page < maxPages; page++ {
		chunk, err := b.lister.ListMarkets(ctx, pageSize, page*pageSize)
		if err != nil {
			return nil, fmt.Errorf("universe: list page %d: %w", page, err)
		}
		if len(chunk) == 0 {
			break
		}
		for i := range chunk {
			m := chunk[i].ToDomain()
			if !domain.IsConditionID(m.ConditionID) {
				continue
			}
			cleaned = append(cleaned, m)
		}
	}

	sort.SliceStable(cleaned, func(i, j int) bool {
		if cleaned[i].Volume != cleaned[j].Volume {
			return cleaned[i].Volume > cleaned[j].Volume
		}
		return cleaned[i].Liquidity > cleaned[j].Liquidity
	})
	if len(cleaned) > size {
		cleaned = cleaned[:size]
	}

	if err := Write(outPath, domain.Universe{Size: size, Markets: cleaned}); err != nil {
		return nil, err
	}
	b.logger.Info("universe written",
		slog.String("path", outPath),
		slog.Int("markets", len(cleaned)),
	)
	return cleaned, nil
}

// Write persists a universe file, creating parent directories as needed.
func Write(path string, u domain.Universe) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("universe: mkdir %s: %w", dir, err)
		}
	}
	b, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return fmt.Errorf("universe: marshal: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("universe: write %s: %w", path, err)
	}
	return nil
}

// Load reads a universe file back.
func Load(path string) (domain.Universe, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.Universe{}, fmt.Errorf("universe: read %s: %w", path, err)
	}
	var u domain.Universe
	if err := json.Unmarshal(b, &u); err != nil {
		return domain.Universe{}, fmt.Errorf("universe: decode %s: %w", path, err)
	}
	return u, nil
}
