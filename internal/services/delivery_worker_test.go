package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maxaizer/vacancy-dispatcher/internal/clients/telegram"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/maxaizer/vacancy-dispatcher/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	args := m.Called(chatID, text)
	return args.Int(0), args.Error(1)
}

func (m *mockSender) SendPhoto(ctx context.Context, chatID int64, photoRef string, caption string) (int, error) {
	args := m.Called(chatID, photoRef, caption)
	return args.Int(0), args.Error(1)
}

func newTestWorker(env *testEnv, sender messageSender) (*DeliveryWorker, *[]time.Duration) {
	worker := NewDeliveryWorker(env.queue, env.queue, sender, env.vacancies, DeliveryWorkerSettings{
		FetchTimeout: 20 * time.Millisecond,
		MaxRetries:   2,
	})
	var slept []time.Duration
	worker.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return worker, &slept
}

func Test_DeliveryWorker_WhenSent_ShouldRecordMessageID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vacancyID := env.persistVacancy(t, "text", uuid.New()).ID
	sender := &mockSender{}
	sender.On("SendText", int64(1), "text").Return(55, nil).Once()
	worker, _ := newTestWorker(env, sender)
	require.NoError(t, env.queue.Publish(ctx, queue.NewVacancyTask(1, vacancyID, "text")))

	processed, err := worker.ProcessOne(ctx)

	require.NoError(t, err)
	assert.True(t, processed)
	sent, err := env.vacancies.HasBeenSent(ctx, 1, vacancyID)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Zero(t, env.queue.Len())
	sender.AssertExpectations(t)
}

func Test_DeliveryWorker_WhenAlreadyDelivered_ShouldNotSendAgain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vacancyID := env.persistVacancy(t, "text", uuid.New()).ID
	require.NoError(t, env.vacancies.RecordSend(ctx, 1, vacancyID, 10))
	sender := &mockSender{}
	worker, _ := newTestWorker(env, sender)
	require.NoError(t, env.queue.Publish(ctx, queue.NewVacancyTask(1, vacancyID, "text")))

	_, err := worker.ProcessOne(ctx)

	require.NoError(t, err)
	sender.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything)
	assert.Zero(t, env.queue.Len())
}

func Test_DeliveryWorker_WhenPhotoRefSet_ShouldSendPhoto(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sender := &mockSender{}
	sender.On("SendPhoto", int64(1), "file-id", "caption").Return(3, nil).Once()
	worker, _ := newTestWorker(env, sender)
	task := queue.NewMessageTask(1, "caption")
	task.PhotoRef = "file-id"
	require.NoError(t, env.queue.Publish(ctx, task))

	_, err := worker.ProcessOne(ctx)

	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func Test_DeliveryWorker_WhenRateLimited_ShouldWaitAndRepublish(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sender := &mockSender{}
	sender.On("SendText", int64(1), "text").Return(0, &telegram.RateLimitError{RetryAfter: 3 * time.Second}).Once()
	worker, slept := newTestWorker(env, sender)
	require.NoError(t, env.queue.Publish(ctx, queue.NewMessageTask(1, "text")))

	_, err := worker.ProcessOne(ctx)

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{3 * time.Second}, *slept)
	tasks := env.drain(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, 1, tasks[0].RetryCount)
}

func Test_DeliveryWorker_WhenRateLimitedAtCap_ShouldGiveUp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vacancyID := env.persistVacancy(t, "text", uuid.New()).ID
	sender := &mockSender{}
	sender.On("SendText", int64(1), "text").Return(0, &telegram.RateLimitError{RetryAfter: time.Second}).Once()
	worker, slept := newTestWorker(env, sender)
	task := queue.NewVacancyTask(1, vacancyID, "text")
	task.RetryCount = 2
	require.NoError(t, env.queue.Publish(ctx, task))

	_, err := worker.ProcessOne(ctx)

	require.NoError(t, err)
	assert.Empty(t, *slept)
	assert.Zero(t, env.queue.Len())
	sent, err := env.vacancies.HasBeenSent(ctx, 1, vacancyID)
	require.NoError(t, err)
	assert.False(t, sent)
}

func Test_DeliveryWorker_WhenRecipientUnavailable_ShouldAckWithoutRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vacancyID := env.persistVacancy(t, "text", uuid.New()).ID
	sender := &mockSender{}
	sender.On("SendText", int64(1), "text").
		Return(0, fmt.Errorf("%w: bot was blocked by the user", telegram.ErrRecipientUnavailable)).Once()
	worker, _ := newTestWorker(env, sender)
	require.NoError(t, env.queue.Publish(ctx, queue.NewVacancyTask(1, vacancyID, "text")))

	_, err := worker.ProcessOne(ctx)

	require.NoError(t, err)
	assert.Zero(t, env.queue.Len())
	records, err := env.vacancies.GetSendRecords(ctx, vacancyID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func Test_DeliveryWorker_WhenUnknownError_ShouldNack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sender := &mockSender{}
	sender.On("SendText", int64(1), "text").Return(0, errors.New("connection reset")).Once()
	worker, _ := newTestWorker(env, sender)
	require.NoError(t, env.queue.Publish(ctx, queue.NewMessageTask(1, "text")))

	_, err := worker.ProcessOne(ctx)

	require.NoError(t, err)
	tasks := env.drain(t)
	require.Len(t, tasks, 1)
	assert.Zero(t, tasks[0].RetryCount)
}

func Test_DeliveryWorker_WhenErrorPersists_ShouldStopAfterMaxDeliveries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sender := &mockSender{}
	sender.On("SendText", int64(1), "text").Return(0, errors.New("Bad Request: message is too long"))
	worker, _ := newTestWorker(env, sender)
	require.NoError(t, env.queue.Publish(ctx, queue.NewMessageTask(1, "text")))

	for i := 0; i < 10; i++ {
		_, err := worker.ProcessOne(ctx)
		require.NoError(t, err)
	}

	sender.AssertNumberOfCalls(t, "SendText", 5)
	assert.Zero(t, env.queue.Len())
}

func Test_DeliveryWorker_WhenVacancyDeletedAfterDispatch_ShouldNotSend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	profession := env.addProfession(t, "SMM", nil)
	env.addSubscriber(t, 1, entities.ModeInstant, profession.ID)
	vacancy := env.persistVacancy(t, "Ищем SMM", profession.ID)
	_, err := env.dispatcher().Dispatch(ctx, vacancy.ID)
	require.NoError(t, err)
	require.Equal(t, 1, env.queue.Len())

	admin := NewAdminService(env.professions, env.stopWords, env.vacancies, &mockDeleter{},
		NewDeduplicator(env.vacancies), nil)
	_, err = admin.DeleteVacancy(ctx, vacancy.ID)
	require.NoError(t, err)

	sender := &mockSender{}
	worker, _ := newTestWorker(env, sender)
	processed, err := worker.ProcessOne(ctx)

	require.NoError(t, err)
	assert.True(t, processed)
	sender.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything)
	assert.Zero(t, env.queue.Len())
	records, err := env.vacancies.GetSendRecords(ctx, vacancy.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func Test_DeliveryWorker_WhenQueueEmpty_ShouldReportNothingProcessed(t *testing.T) {
	env := newTestEnv(t)
	worker, _ := newTestWorker(env, &mockSender{})

	processed, err := worker.ProcessOne(context.Background())

	require.NoError(t, err)
	assert.False(t, processed)
}

func Test_DeliveryWorker_Run_ShouldStopOnCancel(t *testing.T) {
	env := newTestEnv(t)
	worker, _ := newTestWorker(env, &mockSender{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func Test_RetryPolicy_Decide(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3}
	rateLimit := &telegram.RateLimitError{RetryAfter: 5 * time.Second}

	tests := []struct {
		name     string
		retries  int
		err      error
		expected Verdict
	}{
		{"rate limited below cap", 0, rateLimit, Verdict{Decision: DecisionRetry, Delay: 5 * time.Second}},
		{"rate limited wrapped", 2, fmt.Errorf("send: %w", rateLimit), Verdict{Decision: DecisionRetry, Delay: 5 * time.Second}},
		{"rate limited at cap", 3, rateLimit, Verdict{Decision: DecisionGiveUp}},
		{"recipient unavailable", 0, telegram.ErrRecipientUnavailable, Verdict{Decision: DecisionGiveUp}},
		{"unknown", 0, errors.New("boom"), Verdict{Decision: DecisionFatal}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := queue.NewMessageTask(1, "text")
			task.RetryCount = tt.retries
			assert.Equal(t, tt.expected, policy.Decide(task, tt.err))
		})
	}
}
