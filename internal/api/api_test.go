package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/maxaizer/vacancy-dispatcher/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIngestor struct {
	result   services.IngestResult
	err      error
	received []entities.ScrapedMessage
}

func (s *stubIngestor) Ingest(_ context.Context, msg entities.ScrapedMessage) (services.IngestResult, error) {
	s.received = append(s.received, msg)
	return s.result, s.err
}

func post(handler http.Handler, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Ingest-Token", token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

const validBody = `{"origin_chat": -100123, "message_id": 42, "sender_display": "HR", "sender_handle": "@hr",
	"text": " Ищем SMM ", "link": "https://t.me/c/123/42", "timestamp": "2025-03-01T10:00:00Z"}`

func Test_Ingest_WhenPersisted_ShouldReturnVacancyID(t *testing.T) {
	id := uuid.New()
	ingestor := &stubIngestor{result: services.IngestResult{Outcome: services.OutcomePersisted, VacancyID: id}}
	router := NewRouter(ingestor, "secret", nil)

	rec := post(router, validBody, "secret")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ingestResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, services.OutcomePersisted, resp.Status)
	assert.Equal(t, []uuid.UUID{id}, resp.VacancyIDs)

	require.Len(t, ingestor.received, 1)
	msg := ingestor.received[0]
	assert.Equal(t, "Ищем SMM", msg.Text)
	assert.Equal(t, "hr", msg.SenderHandle)
	assert.Equal(t, int64(-100123), msg.OriginChat)
	assert.Equal(t, int64(42), msg.MessageID)
}

func Test_Ingest_WhenNoMatch_ShouldReturnEmptyIDs(t *testing.T) {
	router := NewRouter(&stubIngestor{result: services.IngestResult{Outcome: services.OutcomeNoMatch}}, "", nil)

	rec := post(router, validBody, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "no_match", "vacancy_ids": []}`, rec.Body.String())
}

func Test_Ingest_WhenTokenWrong_ShouldRejectWithoutIngesting(t *testing.T) {
	ingestor := &stubIngestor{}
	router := NewRouter(ingestor, "secret", nil)

	rec := post(router, validBody, "guess")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, ingestor.received)
}

func Test_Ingest_WhenTextMissing_ShouldReturnBadRequest(t *testing.T) {
	ingestor := &stubIngestor{}
	router := NewRouter(ingestor, "", nil)

	assert.Equal(t, http.StatusBadRequest, post(router, `{"text": "   "}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, post(router, `{not json`, "").Code)
	assert.Empty(t, ingestor.received)
}

func Test_Ingest_WhenIngestorFails_ShouldReturnServerError(t *testing.T) {
	router := NewRouter(&stubIngestor{err: errors.New("db down")}, "", nil)

	rec := post(router, validBody, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func Test_Healthz_ShouldReturnOK(t *testing.T) {
	router := NewRouter(&stubIngestor{}, "secret", http.NotFoundHandler())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
