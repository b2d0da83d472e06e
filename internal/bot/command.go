package bot

import (
	"context"
	"strings"

	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maxaizer/vacancy-dispatcher/internal/logger"
	log "github.com/sirupsen/logrus"
)

type apiInterface interface {
	Send(chattable botApi.Chattable) (botApi.Message, error)
	Request(chattable botApi.Chattable) (*botApi.APIResponse, error)
}

// command handles one slash command and returns the reply text.
type command func(ctx context.Context, message *botApi.Message, args string) string

func sendWithLogError(api apiInterface, chattable botApi.Chattable) (botApi.Message, error) {
	msg, err := api.Send(chattable)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeTgApi).
			Errorf("error occured while sending message: %v", err)
	}
	return msg, err
}

func requestWithLogError(api apiInterface, chattable botApi.Chattable) {
	if _, err := api.Request(chattable); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeTgApi).
			Errorf("error occured while calling bot api: %v", err)
	}
}

// splitArgs splits "a | b | c" into trimmed parts. Names may contain spaces, so parts
// are separated by a pipe.
func splitArgs(args string, n int) ([]string, bool) {
	parts := strings.SplitN(args, "|", n)
	if len(parts) != n {
		return nil, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return nil, false
		}
	}
	return parts, true
}

// truncate keeps the text within the Bot API message limit.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
