package telegram

import (
	"context"

	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

type apiInterface interface {
	Send(c botApi.Chattable) (botApi.Message, error)
	Request(c botApi.Chattable) (*botApi.APIResponse, error)
}

// Sender performs outbound Bot API calls with a global pace.
type Sender struct {
	api     apiInterface
	limiter *rate.Limiter
}

func NewSender(api apiInterface, maxRequestsPerSecond float32) *Sender {
	s := &Sender{api: api}
	if maxRequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(maxRequestsPerSecond), 1)
	}
	return s
}

func (s *Sender) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// SendText returns the provider message id of the delivered message.
func (s *Sender) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	msg := botApi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	sent, err := s.api.Send(msg)
	if err != nil {
		return 0, classify(err)
	}
	return sent.MessageID, nil
}

func (s *Sender) SendPhoto(ctx context.Context, chatID int64, photoRef string, caption string) (int, error) {
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	photo := botApi.NewPhoto(chatID, botApi.FileID(photoRef))
	photo.Caption = caption
	sent, err := s.api.Send(photo)
	if err != nil {
		return 0, classify(err)
	}
	return sent.MessageID, nil
}

func (s *Sender) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	_, err := s.api.Request(botApi.NewDeleteMessage(chatID, messageID))
	return classify(err)
}
