package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maxaizer/vacancy-dispatcher/internal/clients/hh"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	pages  map[int][]hh.VacancyPreview
	params []hh.SearchParameters
	err    error
}

func (f *fakeSearcher) GetVacancies(_ context.Context, params hh.SearchParameters) ([]hh.VacancyPreview, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[params.Page], nil
}

type recordingIngestor struct {
	messages []entities.ScrapedMessage
}

func (r *recordingIngestor) Ingest(_ context.Context, msg entities.ScrapedMessage) (IngestResult, error) {
	r.messages = append(r.messages, msg)
	return IngestResult{Outcome: OutcomePersisted}, nil
}

func preview(id, name string) hh.VacancyPreview {
	p := hh.VacancyPreview{ID: id, Name: name, Url: "https://hh.ru/vacancy/" + id}
	p.Employer.Name = "Acme"
	return p
}

func Test_HHScraper_Run_ShouldIngestPagesAndAdvanceCursor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	searcher := &fakeSearcher{pages: map[int][]hh.VacancyPreview{
		0: {preview("1", "Go developer"), preview("2", "Go lead")},
		1: {preview("3", "Go intern")},
	}}
	ingestor := &recordingIngestor{}
	scraper, err := NewHHScraper(searcher, ingestor, env.data, env.professions, HHScraperSettings{
		Spec:    "0 */8 * * *",
		Queries: []string{"golang"},
		PerPage: 2,
	}, time.UTC)
	require.NoError(t, err)
	startedAt := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	scraper.now = func() time.Time { return startedAt }

	persisted, err := scraper.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, persisted)
	require.Len(t, searcher.params, 2)
	assert.Equal(t, hh.AreaRussia, searcher.params[0].AreaID)
	assert.WithinDuration(t, startedAt.Add(-24*time.Hour), searcher.params[0].DateFrom, 0)
	require.Len(t, ingestor.messages, 3)
	assert.Equal(t, "Acme", ingestor.messages[0].SenderName)
	assert.Equal(t, "https://hh.ru/vacancy/1", ingestor.messages[0].Link)
	assert.Contains(t, ingestor.messages[0].Text, "Go developer")

	scraper.now = func() time.Time { return startedAt.Add(8 * time.Hour) }
	_, err = scraper.Run(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, startedAt, searcher.params[2].DateFrom, 0)
}

func Test_HHScraper_Run_WhenNoQueriesConfigured_ShouldSearchProfessionNames(t *testing.T) {
	env := newTestEnv(t)
	env.addProfession(t, "SMM", nil)
	env.addProfession(t, "Go", nil)
	searcher := &fakeSearcher{}
	scraper, err := NewHHScraper(searcher, &recordingIngestor{}, env.data, env.professions,
		HHScraperSettings{Spec: "0 */8 * * *", PerPage: 20}, time.UTC)
	require.NoError(t, err)

	_, err = scraper.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, searcher.params, 2)
	assert.Equal(t, "Go", searcher.params[0].Text)
	assert.Equal(t, "SMM", searcher.params[1].Text)
}

func Test_HHScraper_Run_WhenSearchFails_ShouldKeepCursor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	searcher := &fakeSearcher{err: errors.New("hh is down")}
	scraper, err := NewHHScraper(searcher, &recordingIngestor{}, env.data, env.professions,
		HHScraperSettings{Spec: "0 */8 * * *", Queries: []string{"golang"}, PerPage: 20}, time.UTC)
	require.NoError(t, err)

	_, err = scraper.Run(ctx)

	assert.Error(t, err)
	cursor, err := env.data.Load(ctx, hhCursorKey)
	require.NoError(t, err)
	assert.Nil(t, cursor)
}
