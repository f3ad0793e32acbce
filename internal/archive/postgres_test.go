package archive

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/qfrontier/qfrontier/internal/crawler"
)

func TestRecordPageInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "pages")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()

	rec := crawler.PageRecord{
		CrawlID:     "crawl-1",
		NodeID:      7,
		URL:         "https://example.com/listing",
		Domain:      "example.com",
		StatusCode:  200,
		Success:     true,
		Scores:      map[string]float64{"forms": 0.8},
		Reward:      0.4,
		ContentHash: "abc123",
		FetchedAt:   now,
	}

	mock.ExpectExec("INSERT INTO pages").
		WithArgs(
			rec.CrawlID,
			rec.NodeID,
			rec.URL,
			rec.Domain,
			rec.StatusCode,
			rec.Success,
			[]byte(`{"forms":0.8}`),
			rec.Reward,
			rec.ContentHash,
			rec.FetchedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.RecordPage(context.Background(), rec)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPageValidatesRecord(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "pages")
	require.NoError(t, err)

	err = store.RecordPage(context.Background(), crawler.PageRecord{URL: "https://example.com"})
	require.ErrorContains(t, err, "crawl id")

	err = store.RecordPage(context.Background(), crawler.PageRecord{CrawlID: "crawl-1"})
	require.ErrorContains(t, err, "url")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "pages; drop table pages")
	require.ErrorContains(t, err, "invalid table name")

	_, err = NewWithPool(nil, "pages")
	require.ErrorContains(t, err, "pool is required")

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)
	require.Equal(t, "pages", store.table)
}
