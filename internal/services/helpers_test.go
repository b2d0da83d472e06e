package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/maxaizer/vacancy-dispatcher/internal/queue"
	"github.com/maxaizer/vacancy-dispatcher/internal/repositories"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	vacancies   *repositories.Vacancies
	users       *repositories.Users
	backlog     *repositories.Backlog
	professions *repositories.Professions
	stopWords   *repositories.StopWords
	data        *repositories.Data
	queue       *queue.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dbContext, err := repositories.NewDbContext(repositories.DriverSqlite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	sqlDB, err := dbContext.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, dbContext.Migrate())
	t.Cleanup(func() { _ = dbContext.Close() })

	return &testEnv{
		vacancies:   repositories.NewVacanciesRepository(dbContext.DB),
		users:       repositories.NewUsersRepository(dbContext.DB),
		backlog:     repositories.NewBacklogRepository(dbContext.DB),
		professions: repositories.NewProfessionsRepository(dbContext.DB),
		stopWords:   repositories.NewStopWordsRepository(dbContext.DB),
		data:        repositories.NewDataRepository(dbContext.DB),
		queue:       queue.NewMemory(100, 5),
	}
}

func (e *testEnv) addProfession(t *testing.T, name string, keywords map[string]float64) entities.Profession {
	t.Helper()
	ctx := context.Background()
	profession, err := entities.NewProfession(name, "")
	require.NoError(t, err)
	require.NoError(t, e.professions.Add(ctx, profession))
	for word, weight := range keywords {
		keyword, err := entities.NewKeyword(profession.ID, word, weight)
		require.NoError(t, err)
		require.NoError(t, e.professions.AddKeyword(ctx, keyword))
	}
	return profession
}

// addSubscriber registers a user with an active subscription and the profession selected.
func (e *testEnv) addSubscriber(t *testing.T, id int64, mode entities.DeliveryMode, professionID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.users.Register(ctx, entities.NewUser(id, "user", "")))
	require.NoError(t, e.users.SetDeliveryMode(ctx, id, mode))
	require.NoError(t, e.users.SetSubscriptionUntil(ctx, id, time.Now().UTC().Add(30*24*time.Hour)))
	require.NoError(t, e.users.SetProfessionSelected(ctx, id, professionID, true))
}

func (e *testEnv) classifier(t *testing.T, threshold float64) (*ProfessionCache, *Classifier) {
	t.Helper()
	cache := NewProfessionCache(e.professions, e.stopWords, nil, nil)
	require.NoError(t, cache.Reload(context.Background()))
	return cache, NewClassifier(cache, nil, ClassifierSettings{Threshold: threshold})
}

func (e *testEnv) dispatcher() *Dispatcher {
	return NewDispatcher(e.vacancies, e.users, e.backlog, e.queue)
}

func (e *testEnv) ingestor(t *testing.T) *Ingestor {
	t.Helper()
	_, classifier := e.classifier(t, 1.0)
	return NewIngestor(NewDeduplicator(e.vacancies), classifier, e.vacancies, e.dispatcher(), nil)
}

func (e *testEnv) persistVacancy(t *testing.T, text string, professionID uuid.UUID) entities.Vacancy {
	t.Helper()
	ctx := context.Background()
	vacancy := entities.Vacancy{Hash: entities.Fingerprint(text), Text: text, ProfessionID: professionID}
	id, created, err := e.vacancies.Persist(ctx, vacancy)
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, e.vacancies.AddProfessionMatch(ctx, id, professionID, 1))
	vacancy.ID = id
	return vacancy
}

func (e *testEnv) drain(t *testing.T) []queue.Task {
	t.Helper()
	var tasks []queue.Task
	for {
		delivery, err := e.queue.Fetch(context.Background(), 10*time.Millisecond)
		if err != nil {
			return tasks
		}
		tasks = append(tasks, delivery.Task)
	}
}

type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return nil, errEmbedderUnavailable
}
