package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hal-feed/models"
	"hal-feed/providers/hal"
	"hal-feed/storage"
)

func TestNbDaysMonth(t *testing.T) {
	cases := []struct {
		year, month, want int
	}{
		{2020, 2, 29},
		{2021, 2, 28},
		{2023, 4, 30},
		{2023, 12, 31},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, nbDaysMonth(tc.year, tc.month), "%d-%02d", tc.year, tc.month)
	}
}

func TestWindows(t *testing.T) {
	now := time.Date(2023, 5, 15, 12, 0, 0, 0, time.UTC)

	ws := Windows(now, 1000)
	// 3 Dekaden, 5 Jahresfenster, 8 Jahre à 12 Monatsfenster, 1 Zukunftsfenster.
	require.Len(t, ws, 105)

	assert.Equal(t, models.Window{Start: "1000-01-01T00:00:00Z", End: "1990-12-31T23:59:59Z"}, ws[0])
	assert.Equal(t, models.Window{Start: "2011-01-01T00:00:00Z", End: "2011-12-31T23:59:59Z"}, ws[3])
	assert.Equal(t, models.Window{Start: "2016-01-01T00:00:00Z", End: "2016-01-31T23:59:59Z"}, ws[8])
	assert.Equal(t, models.Window{Start: "2024-01-01T00:00:00Z", End: "2100-12-31T23:59:59Z"}, ws[len(ws)-1])

	// Der Schalttag landet im Februar-Fenster.
	assert.Contains(t, ws, models.Window{Start: "2020-02-01T00:00:00Z", End: "2020-02-29T23:59:59Z"})

	// Fenster sind aufsteigend und überlappungsfrei.
	for i := 1; i < len(ws); i++ {
		assert.Less(t, ws[i-1].End, ws[i].Start)
	}
}

func TestWindowsMinYearFilter(t *testing.T) {
	now := time.Date(2023, 5, 15, 0, 0, 0, 0, time.UTC)

	ws := Windows(now, 2013)
	require.Len(t, ws, 100)
	assert.Equal(t, "2013-01-01T00:00:00Z", ws[0].Start)

	for _, w := range ws {
		assert.GreaterOrEqual(t, w.Start, "2013")
	}
}

func TestHarvesterRun(t *testing.T) {
	ctx := context.Background()

	srv := refServer(t, map[string][]map[string]any{
		"/ref/author/": {
			{"docid": 1, "firstName_s": "Ada", "lastName_s": "Lovelace", "aliasDocid_i": []int{2}},
		},
		"/ref/structure/": {
			{"docid": 100, "name_s": "Lab X", "country_s": "fr"},
		},
		"/search/": {
			{
				"halId_s":         "hal-0000001",
				"title_s":         []string{"Erste Publikation"},
				"authId_i":        []int{2}, // Alias-Docid des Autors
				"structId_i":      []int{100},
				"openAccess_bool": true,
			},
			{"halId_s": "hal-0000002"},
		},
	})
	defer srv.Close()

	cfg := testServiceConfig(srv.URL)
	fetcher := hal.NewFetcher(cfg, zap.NewNop())
	store := newMemStore()
	docs := &fakeDocStore{}
	loader := NewLoadDriver(docs, store, zap.NewNop())
	dirs := NewDirectoryService(cfg, fetcher, store, nil, zap.NewNop())

	h := NewHarvester(cfg, fetcher, dirs, NewParser(zap.NewNop()), store, loader, zap.NewNop())
	h.now = func() time.Time { return time.Date(2016, 1, 15, 0, 0, 0, 0, time.UTC) }

	stats, err := h.Run(ctx, "20160115", true, 2015)
	require.NoError(t, err)

	// Jahresfenster 2015, zwölf Monatsfenster 2016, ein Zukunftsfenster.
	assert.Equal(t, 14, stats.Windows)
	assert.Equal(t, 28, stats.Records)
	assert.Equal(t, 14, stats.Chunks)

	// Drop vor allen Inserts, Index am Ende.
	require.NotEmpty(t, docs.ops)
	assert.Equal(t, "drop", docs.ops[0])
	assert.Equal(t, "index", docs.ops[len(docs.ops)-1])
	assert.Equal(t, []string{"20160115"}, docs.drops)
	assert.Equal(t, []string{"20160115:hal_id"}, docs.indexes)
	require.Len(t, docs.inserts, 14)
	require.Len(t, docs.inserts[0].records, 2)

	record := docs.inserts[0].records[0]
	assert.Equal(t, "hal-0000001", record.HalID)
	require.Contains(t, record.OaDetails, "20160115")
	assert.True(t, record.OaDetails["20160115"].IsOa)
	assert.Equal(t, "2016", record.OaDetails["20160115"].ObservationDate)

	// Der geparste Blob des ersten Fensters trägt die aufgelösten Verzeichnisse.
	gz, err := store.Get(ctx, "20160115/parsed/hal_parsed_2015-01-01T00:00:00Z_2015-12-31T23:59:59Z_0.json.gz")
	require.NoError(t, err)
	data, err := storage.Gunzip(gz)
	require.NoError(t, err)
	var parsed []models.Publication
	require.NoError(t, json.Unmarshal(data, &parsed))
	require.Len(t, parsed, 2)
	require.Len(t, parsed[0].Authors, 1)
	assert.Equal(t, "Ada Lovelace", parsed[0].Authors[0].FullName)
	assert.Equal(t, 1, parsed[0].Authors[0].AuthorPosition)
	require.Len(t, parsed[0].Affiliations, 1)
	assert.Equal(t, "France", parsed[0].Affiliations[0].Country)

	// Die AuréHAL-Artefakte liegen unter dem Collection-Präfix.
	keys := store.keys()
	assert.Contains(t, keys, "20160115/aurehal_author_dict.json.gz")
	assert.Contains(t, keys, "20160115/aurehal_structure_dict.json.gz")
}
