package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrRecipientUnavailable means the recipient can never be reached: the bot was blocked,
// the account was deactivated or the chat does not exist.
var ErrRecipientUnavailable = errors.New("recipient unavailable")

type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %v", e.RetryAfter)
}

var unavailableDescriptions = []string{
	"chat not found",
	"user is deactivated",
	"bot was blocked by the user",
	"bot was kicked",
	"user not found",
	"peer_id_invalid",
}

// classify maps Bot API errors onto RateLimitError and ErrRecipientUnavailable, other
// errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *botApi.Error
	if !errors.As(err, &apiErr) {
		var valueErr botApi.Error
		if !errors.As(err, &valueErr) {
			return err
		}
		apiErr = &valueErr
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests || apiErr.RetryAfter > 0:
		return &RateLimitError{RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second}
	case apiErr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrRecipientUnavailable, apiErr.Message)
	case apiErr.Code == http.StatusBadRequest:
		description := strings.ToLower(apiErr.Message)
		for _, d := range unavailableDescriptions {
			if strings.Contains(description, d) {
				return fmt.Errorf("%w: %s", ErrRecipientUnavailable, apiErr.Message)
			}
		}
	}
	return err
}
