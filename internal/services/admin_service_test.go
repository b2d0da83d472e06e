package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/maxaizer/vacancy-dispatcher/internal/clients/telegram"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDeleter struct {
	mock.Mock
}

func (m *mockDeleter) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return m.Called(chatID, messageID).Error(0)
}

type stubRescraper struct {
	runs int
}

func (s *stubRescraper) Run(context.Context) (int, error) {
	s.runs++
	return 4, nil
}

func newTestAdmin(env *testEnv, deleter messageDeleter) *AdminService {
	return NewAdminService(env.professions, env.stopWords, env.vacancies, deleter, NewDeduplicator(env.vacancies), nil)
}

func Test_ParseWeight(t *testing.T) {
	tests := []struct {
		raw      string
		expected float64
		valid    bool
	}{
		{"0", 0, false},
		{"1.5", 0, false},
		{"0.1", 0.1, true},
		{"1.0", 1.0, true},
		{"0,5", 0.5, true},
		{"heavy", 0, false},
	}

	for _, tt := range tests {
		weight, err := ParseWeight(tt.raw)
		if tt.valid {
			assert.NoError(t, err, tt.raw)
			assert.InDelta(t, tt.expected, weight, 1e-9, tt.raw)
		} else {
			assert.ErrorIs(t, err, ErrInvalidWeight, tt.raw)
		}
	}
}

func Test_AdminService_AddKeyword_WhenInvalidWeight_ShouldLeaveStateUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := newTestAdmin(env, nil)
	_, err := admin.AddProfession(ctx, "SMM", "")
	require.NoError(t, err)

	_, err = admin.AddKeyword(ctx, "SMM", "instagram", "1.5")
	assert.ErrorIs(t, err, ErrInvalidWeight)

	professions, err := env.professions.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, professions, 1)
	assert.Empty(t, professions[0].Keywords)
}

func Test_AdminService_AddKeyword_WhenProfessionUnknown_ShouldFail(t *testing.T) {
	env := newTestEnv(t)

	_, err := newTestAdmin(env, nil).AddKeyword(context.Background(), "Nobody", "word", "0.5")

	assert.ErrorIs(t, err, ErrProfessionNotFound)
}

func Test_AdminService_AddKeyword_WhenExisting_ShouldUpdateWeight(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := newTestAdmin(env, nil)
	_, err := admin.AddProfession(ctx, "SMM", "")
	require.NoError(t, err)

	_, err = admin.AddKeyword(ctx, "smm", "Instagram", "0.3")
	require.NoError(t, err)
	_, err = admin.AddKeyword(ctx, "SMM", "instagram", "0.9")
	require.NoError(t, err)

	professions, err := env.professions.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, professions[0].Keywords, 1)
	assert.InDelta(t, 0.9, professions[0].Keywords[0].Weight, 1e-9)

	require.NoError(t, admin.RemoveKeyword(ctx, "SMM", "INSTAGRAM"))
	assert.ErrorIs(t, admin.RemoveKeyword(ctx, "SMM", "instagram"), ErrKeywordNotFound)
}

func Test_AdminService_AddProfession_WhenDuplicate_ShouldFail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := newTestAdmin(env, nil)

	_, err := admin.AddProfession(ctx, "SMM", "")
	require.NoError(t, err)
	_, err = admin.AddProfession(ctx, "SMM", "again")

	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func Test_AdminService_StopWords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := newTestAdmin(env, nil)

	require.NoError(t, admin.AddStopWord(ctx, "Стажировка"))
	assert.ErrorIs(t, admin.AddStopWord(ctx, "стажировка"), ErrAlreadyExists)
	require.NoError(t, admin.RemoveStopWord(ctx, "СТАЖИРОВКА"))
	assert.ErrorIs(t, admin.RemoveStopWord(ctx, "стажировка"), ErrStopWordNotFound)
}

func Test_AdminService_RemoveProfession_ShouldCascade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	profession := env.addProfession(t, "Go", map[string]float64{
		"go": 1, "golang": 1, "gorm": 0.5, "grpc": 0.5, "kafka": 0.3,
	})
	env.addSubscriber(t, 1, entities.ModeTwoHourBatch, profession.ID)
	dispatcher := env.dispatcher()
	var vacancyIDs []uuid.UUID
	for _, text := range []string{"Go developer", "Senior Go", "Go team lead"} {
		vacancy := env.persistVacancy(t, text, profession.ID)
		_, err := dispatcher.Dispatch(ctx, vacancy.ID)
		require.NoError(t, err)
		vacancyIDs = append(vacancyIDs, vacancy.ID)
	}

	require.NoError(t, newTestAdmin(env, nil).RemoveProfession(ctx, "go"))

	professions, err := env.professions.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, professions)
	for _, id := range vacancyIDs {
		found, err := env.vacancies.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, found)
	}
	count, err := env.backlog.Count(ctx, 1, entities.PartitionTwoHours)
	require.NoError(t, err)
	assert.Zero(t, count)
	selected, err := env.users.SelectedProfessions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, selected)
}

func Test_AdminService_DeleteVacancy_ShouldRetractDeliveredCopies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	profession := env.addProfession(t, "Go", nil)
	vacancy := env.persistVacancy(t, "Go developer", profession.ID)
	require.NoError(t, env.vacancies.RecordSend(ctx, 1, vacancy.ID, 11))
	require.NoError(t, env.vacancies.RecordSend(ctx, 2, vacancy.ID, 22))
	reserved, err := env.vacancies.ReserveSend(ctx, 3, vacancy.ID)
	require.NoError(t, err)
	require.True(t, reserved)

	deleter := &mockDeleter{}
	deleter.On("DeleteMessage", int64(1), 11).Return(nil).Once()
	deleter.On("DeleteMessage", int64(2), 22).Return(telegram.ErrRecipientUnavailable).Once()
	dedup := NewDeduplicator(env.vacancies)
	dedup.Remember(vacancy.Hash, vacancy.ID)
	admin := NewAdminService(env.professions, env.stopWords, env.vacancies, deleter, dedup, nil)

	report, err := admin.DeleteVacancy(ctx, vacancy.ID)

	require.NoError(t, err)
	assert.Equal(t, RetractionReport{Retracted: 1, Failed: 1}, report)
	deleter.AssertExpectations(t)
	records, err := env.vacancies.GetSendRecords(ctx, vacancy.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
	found, err := dedup.Lookup(ctx, vacancy.Hash)
	require.NoError(t, err)
	assert.Nil(t, found)

	_, err = admin.DeleteVacancy(ctx, vacancy.ID)
	assert.ErrorIs(t, err, ErrVacancyNotFound)
}

func Test_AdminService_Rescrape(t *testing.T) {
	env := newTestEnv(t)
	admin := newTestAdmin(env, nil)

	_, err := admin.Rescrape(context.Background())
	assert.ErrorIs(t, err, ErrRescrapeDenied)

	rescraper := &stubRescraper{}
	admin.SetRescraper(rescraper)
	n, err := admin.Rescrape(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 1, rescraper.runs)
}

func Test_AdminService_SendStats_ShouldCountDeliveredOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	profession := env.addProfession(t, "Go", nil)
	vacancy := env.persistVacancy(t, "Go developer", profession.ID)
	require.NoError(t, env.vacancies.RecordSend(ctx, 1, vacancy.ID, 11))
	_, err := env.vacancies.ReserveSend(ctx, 2, vacancy.ID)
	require.NoError(t, err)

	stats, err := newTestAdmin(env, nil).SendStats(ctx)

	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].Sent)
}
