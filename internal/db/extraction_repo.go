package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/klauspost/compress/zstd"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// ExtractionRepository provides data access for the diet_extractions table.
// Raw diet text is archived zstd-compressed; callers see plain text on both
// sides.
type ExtractionRepository struct {
	db      DBTX
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewExtractionRepository creates an ExtractionRepository backed by the given
// database connection. The shared encoder and decoder are safe for concurrent
// use via EncodeAll/DecodeAll.
func NewExtractionRepository(db DBTX) *ExtractionRepository {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(fmt.Sprintf("failed to create zstd encoder: %v", err))
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
	}
	return &ExtractionRepository{db: db, encoder: enc, decoder: dec}
}

// Save archives one extraction record.
func (r *ExtractionRepository) Save(ctx context.Context, rec *types.ExtractionRecord) error {
	compressed := r.encoder.EncodeAll([]byte(rec.RawText), nil)
	_, err := r.db.Exec(ctx,
		`INSERT INTO diet_extractions (
			id, owner_id, raw_text_zst, activity_count, rule_count, warnings,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		rec.ID,
		rec.OwnerID,
		compressed,
		rec.ActivityCount,
		rec.RuleCount,
		rec.Warnings,
		nilIfZeroTime(rec.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save extraction record", err)
	}
	return nil
}

// GetLatestByOwner retrieves the most recent extraction record for an owner,
// with the raw text decompressed.
func (r *ExtractionRepository) GetLatestByOwner(ctx context.Context, ownerID string) (*types.ExtractionRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, owner_id, raw_text_zst, activity_count, rule_count, warnings, created_at
		 FROM diet_extractions
		 WHERE owner_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		ownerID,
	)

	var rec types.ExtractionRecord
	var compressed []byte
	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&compressed,
		&rec.ActivityCount,
		&rec.RuleCount,
		&rec.Warnings,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundExtraction, "no extraction on record for owner", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve extraction record", err)
	}

	raw, err := r.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decompress archived diet text", err)
	}
	rec.RawText = string(raw)
	return &rec, nil
}

// DeleteBefore removes extraction records created before the cutoff, keeping
// the newest record per owner so GetLatestByOwner always has something to
// return. Used by the retention sweep.
func (r *ExtractionRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM diet_extractions d
		 WHERE d.created_at < $1
		   AND d.id NOT IN (
			SELECT DISTINCT ON (owner_id) id
			FROM diet_extractions
			ORDER BY owner_id, created_at DESC
		   )`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to prune extraction records", err)
	}
	return tag.RowsAffected(), nil
}
