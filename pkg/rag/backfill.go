package rag

import (
	"context"
	"strings"

	"github.com/AhmedEldessouki1982/cdns/internal/types"
)

// SourceRecord is one record of a backfill source collection.
type SourceRecord struct {
	PK      string
	Content string
	Tags    []string
}

// RecordSource walks a source collection page by page.
type RecordSource interface {
	Table() string
	ListPage(ctx context.Context, offset, limit int) ([]SourceRecord, error)
}

// BackfillOptions tunes one backfill walk.
type BackfillOptions struct {
	// Field is the designated field name stored into each chunk's
	// composite key. Defaults to "description".
	Field string
	// BatchSize is the page size for the walk. Defaults to 200.
	BatchSize int
	// OnRecord, when set, is invoked after each record is processed,
	// successful or not. Used for progress reporting.
	OnRecord func(pk string)
}

// BackfillStats summarizes a completed walk.
type BackfillStats struct {
	Records int
	Chunks  int
	Failed  int
}

// Backfill walks the source page by page and ingests the designated
// field of every record with non-empty content. The offset advances by
// the number of records consumed, so the walk tolerates rows inserted
// behind it but not rows deleted from already-visited pages. Per-record
// failures are logged and counted; the walk continues.
func (p *Pipeline) Backfill(ctx context.Context, source RecordSource, opts BackfillOptions) (BackfillStats, error) {
	if source == nil {
		return BackfillStats{}, types.Validationf("backfill requires a record source")
	}
	if opts.Field == "" {
		opts.Field = "description"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}

	var stats BackfillStats
	offset := 0
	for {
		records, err := source.ListPage(ctx, offset, opts.BatchSize)
		if err != nil {
			return stats, err
		}
		if len(records) == 0 {
			break
		}

		for _, rec := range records {
			stats.Records++
			if strings.TrimSpace(rec.Content) == "" {
				if opts.OnRecord != nil {
					opts.OnRecord(rec.PK)
				}
				continue
			}

			ref := FieldRef{SourceTable: source.Table(), SourcePK: rec.PK, Field: opts.Field}
			n, err := p.IngestField(ctx, ref, rec.Content, rec.Tags)
			if err != nil {
				stats.Failed++
				p.logger.Error().Err(err).
					Str("source_table", ref.SourceTable).
					Str("source_pk", rec.PK).
					Msg("backfill record failed")
			} else {
				stats.Chunks += n
			}
			if opts.OnRecord != nil {
				opts.OnRecord(rec.PK)
			}
		}

		offset += len(records)
	}

	p.logger.Info().
		Int("records", stats.Records).
		Int("chunks", stats.Chunks).
		Int("failed", stats.Failed).
		Msg("backfill complete")
	return stats, nil
}
