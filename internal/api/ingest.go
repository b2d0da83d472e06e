package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/maxaizer/vacancy-dispatcher/internal/logger"
	"github.com/maxaizer/vacancy-dispatcher/internal/services"
	log "github.com/sirupsen/logrus"
)

type messageIngestor interface {
	Ingest(ctx context.Context, msg entities.ScrapedMessage) (services.IngestResult, error)
}

type IngestHandler struct {
	Ingestor messageIngestor
}

type ingestReq struct {
	OriginChat    int64     `json:"origin_chat"`
	MessageID     int64     `json:"message_id"`
	SenderDisplay string    `json:"sender_display"`
	SenderHandle  string    `json:"sender_handle"`
	Text          string    `json:"text" validate:"required"`
	ForwardedFrom string    `json:"forwarded_from"`
	Link          string    `json:"link" validate:"omitempty,url"`
	Timestamp     time.Time `json:"timestamp"`
}

type ingestResp struct {
	Status     services.IngestOutcome `json:"status"`
	VacancyIDs []uuid.UUID            `json:"vacancy_ids"`
}

var validate = validator.New()

func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.Ingestor.Ingest(r.Context(), entities.ScrapedMessage{
		OriginChat:    req.OriginChat,
		MessageID:     req.MessageID,
		SenderName:    req.SenderDisplay,
		SenderHandle:  strings.TrimPrefix(req.SenderHandle, "@"),
		Text:          req.Text,
		ForwardedFrom: req.ForwardedFrom,
		Link:          req.Link,
		Timestamp:     req.Timestamp,
	})
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeHttp).Errorf("ingest failed: %v", err)
		if result.Outcome == "" {
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
	}

	resp := ingestResp{Status: result.Outcome, VacancyIDs: []uuid.UUID{}}
	if result.VacancyID != uuid.Nil {
		resp.VacancyIDs = append(resp.VacancyIDs, result.VacancyID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
