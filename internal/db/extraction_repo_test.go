package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

func TestExtractionRepository_Save_CompressesRawText(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewExtractionRepository(dbtx)

	var captured []any
	dbtx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(2).([]any) }).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	raw := "THURSDAY- 5:30AM- 1 glass jeera water\n6AM- 5 almonds, 2 walnuts"
	err := repo.Save(context.Background(), &types.ExtractionRecord{
		ID:            "ext_1",
		OwnerID:       "user_1",
		RawText:       raw,
		ActivityCount: 2,
		RuleCount:     2,
		Warnings:      []string{"no day headers detected"},
	})
	require.NoError(t, err)

	compressed, ok := captured[2].([]byte)
	require.True(t, ok)
	assert.NotEqual(t, []byte(raw), compressed)

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	roundTripped, err := dec.DecodeAll(compressed, nil)
	require.NoError(t, err)
	assert.Equal(t, raw, string(roundTripped))
}

func TestExtractionRepository_GetLatestByOwner_DecompressesRawText(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewExtractionRepository(dbtx)

	raw := "FRIDAY- 6AM- 5 almonds"
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll([]byte(raw), nil)
	require.NoError(t, enc.Close())

	created := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	row := &mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*string) = "ext_1"
		*dest[1].(*string) = "user_1"
		*dest[2].(*[]byte) = compressed
		*dest[3].(*int) = 1
		*dest[4].(*int) = 1
		*dest[5].(*[]string) = []string{}
		*dest[6].(*time.Time) = created
		return nil
	}}
	dbtx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"user_1"}).
		Return(row)

	rec, err := repo.GetLatestByOwner(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, raw, rec.RawText)
	assert.Equal(t, 1, rec.ActivityCount)
	assert.Equal(t, created, rec.CreatedAt)
}

func TestExtractionRepository_GetLatestByOwner_NotFound(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewExtractionRepository(dbtx)

	dbtx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetLatestByOwner(context.Background(), "user_none")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundExtraction, appErr.Code)
}

func TestExtractionRepository_DeleteBefore(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewExtractionRepository(dbtx)

	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dbtx.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{cutoff}).
		Return(pgconn.NewCommandTag("DELETE 7"), nil)

	n, err := repo.DeleteBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
