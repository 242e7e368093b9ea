package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/smartflow/engine/internal/domain"
	"github.com/smartflow/engine/internal/ledger"
)

// BlobWriter is the narrow upload surface the archiver needs.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver exports cold trade history to object storage. Each run scans one
// market's trades up to a cutoff, serializes them to JSONL, and uploads a
// single object. The ledger is never mutated: archives are additive exports,
// and pruning is a separate explicit operation once an archive is verified.
type Archiver struct {
	store  *ledger.Store
	writer BlobWriter
	logger *slog.Logger
}

// NewArchiver creates an Archiver over the given ledger and blob writer.
func NewArchiver(store *ledger.Store, writer BlobWriter, logger *slog.Logger) *Archiver {
	return &Archiver{
		store:  store,
		writer: writer,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveTrades uploads all trades of a market with timestamps strictly
// before the cutoff. Returns the number of records archived; zero records
// means no object is written.
func (a *Archiver) ArchiveTrades(ctx context.Context, conditionID string, before time.Time) (int64, error) {
	cutoff := before.Unix()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	var count int64
	err := a.store.ScanPrefix(ledger.TradePrefix(conditionID), 0, func(_ string, value []byte) error {
		var t domain.Trade
		if err := json.Unmarshal(value, &t); err != nil {
			// A corrupt record should not block archiving the rest.
			a.logger.WarnContext(ctx, "skipping undecodable trade record",
				slog.String("market", conditionID),
			)
			return nil
		}
		if t.Timestamp >= cutoff {
			return ledger.ErrStopScan
		}
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("encode record %d: %w", count, err)
		}
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades scan: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	path := archivePath(conditionID, before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf.Bytes()), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	a.logger.InfoContext(ctx, "trades archived",
		slog.String("market", conditionID),
		slog.String("path", path),
		slog.Int64("records", count),
	)
	return count, nil
}

// archivePath builds the object key, partitioned by market and by the
// year-month of the cutoff, with a run id so repeated runs never clobber a
// verified archive.
//
//	archive/trades/0xabc.../2025-01-3f2a....jsonl
func archivePath(conditionID string, before time.Time) string {
	return fmt.Sprintf("archive/trades/%s/%s-%s.jsonl",
		conditionID, before.Format("2006-01"), uuid.NewString())
}
