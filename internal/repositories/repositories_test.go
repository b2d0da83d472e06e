package repositories

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDb(t *testing.T) *DbContext {
	t.Helper()
	dbContext, err := NewDbContext(DriverSqlite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	sqlDB, err := dbContext.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, dbContext.Migrate())
	t.Cleanup(func() { _ = dbContext.Close() })
	return dbContext
}

func newVacancy(text string, professionID uuid.UUID) entities.Vacancy {
	return entities.Vacancy{
		Hash:         entities.Fingerprint(text),
		Text:         text,
		ProfessionID: professionID,
	}
}

func Test_Vacancies_Persist_WhenSameHash_ShouldReturnExistingID(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	repo := NewVacanciesRepository(newTestDb(t).DB)

	id1, created1, err := repo.Persist(ctx, newVacancy("Ищем SMM", uuid.New()))
	assert.NoError(err)
	assert.True(created1)

	id2, created2, err := repo.Persist(ctx, newVacancy("  ищем smm ", uuid.New()))
	assert.NoError(err)
	assert.False(created2)
	assert.Equal(id1, id2)

	found, err := repo.GetByHash(ctx, entities.Fingerprint("ищем smm"))
	assert.NoError(err)
	assert.Equal(id1, found.ID)
}

func Test_Vacancies_Persist_Concurrent_ShouldCreateOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewVacanciesRepository(newTestDb(t).DB)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ids := map[uuid.UUID]struct{}{}
	createdCount := 0

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, created, err := repo.Persist(ctx, newVacancy("same text", uuid.New()))
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[id] = struct{}{}
			if created {
				createdCount++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, createdCount)
}

func Test_Vacancies_ReserveAndRecordSend(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	repo := NewVacanciesRepository(newTestDb(t).DB)
	vacancyID, _, err := repo.Persist(ctx, newVacancy("text", uuid.New()))
	assert.NoError(err)

	reserved, err := repo.ReserveSend(ctx, 1, vacancyID)
	assert.NoError(err)
	assert.True(reserved)

	reserved, err = repo.ReserveSend(ctx, 1, vacancyID)
	assert.NoError(err)
	assert.False(reserved)

	sent, err := repo.HasBeenSent(ctx, 1, vacancyID)
	assert.NoError(err)
	assert.False(sent, "reservation is not a delivery")

	assert.NoError(repo.RecordSend(ctx, 1, vacancyID, 42))
	assert.NoError(repo.RecordSend(ctx, 1, vacancyID, 43))

	sent, err = repo.HasBeenSent(ctx, 1, vacancyID)
	assert.NoError(err)
	assert.True(sent)

	records, err := repo.GetSendRecords(ctx, vacancyID)
	assert.NoError(err)
	assert.Len(records, 1)
	assert.Equal(43, records[0].MessageID)
}

func Test_Vacancies_RecordSend_WhenVacancyDeleted_ShouldNotLeaveRecord(t *testing.T) {
	ctx := context.Background()
	repo := NewVacanciesRepository(newTestDb(t).DB)
	vacancyID, _, err := repo.Persist(ctx, newVacancy("text", uuid.New()))
	require.NoError(t, err)
	vacancy, err := repo.GetByID(ctx, vacancyID)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, *vacancy))

	err = repo.RecordSend(ctx, 1, vacancyID, 42)

	assert.ErrorIs(t, err, ErrVacancyGone)
	records, err := repo.GetSendRecords(ctx, vacancyID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func Test_Vacancies_Delete_ShouldRemoveDependents(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := newTestDb(t).DB
	repo := NewVacanciesRepository(db)
	backlog := NewBacklogRepository(db)

	professionID := uuid.New()
	vacancyID, _, _ := repo.Persist(ctx, newVacancy("text", professionID))
	vacancy, _ := repo.GetByID(ctx, vacancyID)
	assert.NoError(repo.AddProfessionMatch(ctx, vacancyID, professionID, 1.5))
	assert.NoError(repo.RecordSend(ctx, 7, vacancyID, 100))
	_, err := backlog.Add(ctx, entities.NewBacklogEntry(8, entities.PartitionTwoHours, *vacancy, professionID))
	assert.NoError(err)

	assert.NoError(repo.Delete(ctx, *vacancy))

	found, err := repo.GetByID(ctx, vacancyID)
	assert.NoError(err)
	assert.Nil(found)
	records, _ := repo.GetSendRecords(ctx, vacancyID)
	assert.Empty(records)
	matches, _ := repo.GetProfessionMatches(ctx, vacancyID)
	assert.Empty(matches)
	count, _ := backlog.Count(ctx, 8, entities.PartitionTwoHours)
	assert.Zero(count)
}

func Test_Backlog_AddIsIdempotentAndClaimOnce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := newTestDb(t).DB
	vacancies := NewVacanciesRepository(db)
	backlog := NewBacklogRepository(db)

	for _, text := range []string{"a", "b", "c"} {
		id, _, _ := vacancies.Persist(ctx, newVacancy(text, uuid.New()))
		v, _ := vacancies.GetByID(ctx, id)
		added, err := backlog.Add(ctx, entities.NewBacklogEntry(1, entities.PartitionTwoHours, *v, v.ProfessionID))
		assert.NoError(err)
		assert.True(added)
		added, err = backlog.Add(ctx, entities.NewBacklogEntry(1, entities.PartitionTwoHours, *v, v.ProfessionID))
		assert.NoError(err)
		assert.False(added)
	}

	users, err := backlog.UsersWithPending(ctx, entities.PartitionTwoHours)
	assert.NoError(err)
	assert.Equal([]int64{1}, users)

	claimed, err := backlog.Claim(ctx, 1, entities.PartitionTwoHours)
	assert.NoError(err)
	assert.Len(claimed, 3)

	claimed, err = backlog.Claim(ctx, 1, entities.PartitionTwoHours)
	assert.NoError(err)
	assert.Empty(claimed)

	pull, _ := backlog.Count(ctx, 1, entities.PartitionPull)
	assert.Zero(pull)
}

func Test_Professions_Remove_ShouldCascade(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := newTestDb(t).DB
	professions := NewProfessionsRepository(db)
	vacancies := NewVacanciesRepository(db)
	users := NewUsersRepository(db)

	profession, _ := entities.NewProfession("SMM", "")
	assert.NoError(professions.Add(ctx, profession))
	assert.ErrorIs(professions.Add(ctx, entities.Profession{ID: uuid.New(), Name: "SMM"}), ErrDuplicate)

	for _, word := range []string{"smm", "instagram", "reels", "vk", "tiktok"} {
		k, err := entities.NewKeyword(profession.ID, word, 0.5)
		assert.NoError(err)
		assert.NoError(professions.AddKeyword(ctx, k))
	}
	assert.NoError(users.Register(ctx, entities.NewUser(1, "Ann", "ann")))
	assert.NoError(users.SetProfessionSelected(ctx, 1, profession.ID, true))
	for _, text := range []string{"v1", "v2", "v3"} {
		id, _, _ := vacancies.Persist(ctx, newVacancy(text, profession.ID))
		assert.NoError(vacancies.AddProfessionMatch(ctx, id, profession.ID, 1))
		assert.NoError(vacancies.RecordSend(ctx, 1, id, 10))
	}

	assert.NoError(professions.Remove(ctx, profession.ID))

	var count int64
	for _, model := range []any{&entities.Keyword{}, &entities.Vacancy{}, &entities.SentVacancy{},
		&entities.VacancyProfession{}, &entities.UserProfession{}, &entities.Profession{}} {
		assert.NoError(db.Model(model).Count(&count).Error)
		assert.Zero(count, "%T", model)
	}
}

func Test_Professions_SendStats(t *testing.T) {
	ctx := context.Background()
	db := newTestDb(t).DB
	professions := NewProfessionsRepository(db)
	vacancies := NewVacanciesRepository(db)

	smm, _ := entities.NewProfession("SMM", "")
	dev, _ := entities.NewProfession("Developer", "")
	assert.NoError(t, professions.Add(ctx, smm))
	assert.NoError(t, professions.Add(ctx, dev))

	id, _, _ := vacancies.Persist(ctx, newVacancy("v1", smm.ID))
	assert.NoError(t, vacancies.RecordSend(ctx, 1, id, 5))
	assert.NoError(t, vacancies.RecordSend(ctx, 2, id, 6))
	_, err := vacancies.ReserveSend(ctx, 3, id)
	assert.NoError(t, err)

	stats, err := professions.SendStats(ctx)
	assert.NoError(t, err)
	assert.Len(t, stats, 2)
	assert.Equal(t, "SMM", stats[0].Name)
	assert.Equal(t, int64(2), stats[0].Sent)
	assert.Equal(t, int64(0), stats[1].Sent)
}

func Test_Users_GetEligibleByProfession_ShouldGateSubscriptionAndBan(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	users := NewUsersRepository(newTestDb(t).DB)
	professionID := uuid.New()
	now := time.Now().UTC()

	register := func(id int64, until time.Time, banned bool, selected bool) {
		assert.NoError(users.Register(ctx, entities.NewUser(id, "", "")))
		assert.NoError(users.SetSubscriptionUntil(ctx, id, until))
		assert.NoError(users.SetBanned(ctx, id, banned))
		assert.NoError(users.SetProfessionSelected(ctx, id, professionID, selected))
	}
	register(1, now.Add(24*time.Hour), false, true)
	register(2, now.Add(-24*time.Hour), false, true)
	register(3, now.Add(24*time.Hour), true, true)
	register(4, now.Add(24*time.Hour), false, false)
	assert.NoError(users.Register(ctx, entities.NewUser(5, "", "")))
	assert.NoError(users.SetProfessionSelected(ctx, 5, professionID, true))

	eligible, err := users.GetEligibleByProfession(ctx, professionID, now)
	assert.NoError(err)
	assert.Len(eligible, 1)
	assert.Equal(int64(1), eligible[0].TelegramID)
}

func Test_Users_Update_WhenUnknown_ShouldFail(t *testing.T) {
	users := NewUsersRepository(newTestDb(t).DB)
	assert.Error(t, users.SetEmail(context.Background(), 404, "a@b.c"))
}

func Test_Users_GetAudience_ShouldSelectBySegment(t *testing.T) {
	ctx := context.Background()
	db := newTestDb(t).DB
	users := NewUsersRepository(db)
	now := time.Now().UTC()
	professionID := uuid.New()

	for id := int64(1); id <= 4; id++ {
		require.NoError(t, users.Register(ctx, entities.NewUser(id, "user", "")))
	}
	require.NoError(t, users.SetSubscriptionUntil(ctx, 1, now.Add(time.Hour)))
	require.NoError(t, users.SetSubscriptionUntil(ctx, 2, now.Add(-time.Hour)))
	require.NoError(t, users.SetSubscriptionUntil(ctx, 4, now.Add(time.Hour)))
	require.NoError(t, users.SetBanned(ctx, 4, true))
	require.NoError(t, users.SetProfessionSelected(ctx, 2, professionID, true))

	tests := []struct {
		audience entities.Audience
		expected []int64
	}{
		{entities.Audience{Kind: entities.AudienceAll}, []int64{1, 2, 3}},
		{entities.Audience{Kind: entities.AudienceSubscribed}, []int64{1}},
		{entities.Audience{Kind: entities.AudienceUnsubscribed}, []int64{2, 3}},
		{entities.Audience{Kind: entities.AudienceExpired}, []int64{2}},
		{entities.Audience{Kind: entities.AudienceProfession, ProfessionID: professionID}, []int64{2}},
	}
	for _, tt := range tests {
		t.Run(string(tt.audience.Kind), func(t *testing.T) {
			ids, err := users.GetAudience(ctx, tt.audience, now)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func Test_Users_ExpiryNotified_ShouldBeRearmedByNewSubscription(t *testing.T) {
	ctx := context.Background()
	users := NewUsersRepository(newTestDb(t).DB)
	now := time.Now().UTC()
	require.NoError(t, users.Register(ctx, entities.NewUser(1, "user", "")))
	require.NoError(t, users.SetSubscriptionUntil(ctx, 1, now.Add(-time.Minute)))

	ids, err := users.GetNewlyExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	changed, err := users.SetExpiryNotified(ctx, 1, true)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = users.SetExpiryNotified(ctx, 1, true)
	require.NoError(t, err)
	assert.False(t, changed)

	ids, err = users.GetNewlyExpired(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, users.SetSubscriptionUntil(ctx, 1, now.Add(time.Hour)))
	ids, err = users.GetNewlyExpired(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
}

func Test_Data_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	data := NewDataRepository(newTestDb(t).DB)

	value, err := data.Load(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, value)

	assert.NoError(t, data.Save(ctx, "cursor", []byte("1")))
	assert.NoError(t, data.Save(ctx, "cursor", []byte("2")))
	value, err = data.Load(ctx, "cursor")
	assert.NoError(t, err)
	assert.Equal(t, []byte("2"), value)
}
