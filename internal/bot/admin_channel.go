package bot

import (
	"context"
	"fmt"
	"strings"

	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/maxaizer/vacancy-dispatcher/internal/events"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	deleteCallbackPrefix = "del:"
	maxMessageLength     = 4096
)

func (b *Bot) onVacancyPersisted(event events.VacancyPersisted) {
	names := lo.Map(event.Matches, func(m entities.ProfessionScore, _ int) string {
		return fmt.Sprintf("%s (%.2f)", m.Name, m.Total)
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Новая вакансия: %s\n", strings.Join(names, ", ")))
	if event.Vacancy.AuthorHandle != "" {
		sb.WriteString(fmt.Sprintf("Автор: @%s\n", event.Vacancy.AuthorHandle))
	} else if event.Vacancy.AuthorName != "" {
		sb.WriteString(fmt.Sprintf("Автор: %s\n", event.Vacancy.AuthorName))
	}
	if event.Vacancy.URL != "" {
		sb.WriteString(fmt.Sprintf("Источник: %s\n", event.Vacancy.URL))
	}
	sb.WriteString("\n")
	sb.WriteString(event.Vacancy.Text)

	msg := botApi.NewMessage(b.deps.AdminChatID, truncate(sb.String(), maxMessageLength))
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = botApi.NewInlineKeyboardMarkup(
		botApi.NewInlineKeyboardRow(
			botApi.NewInlineKeyboardButtonData("🗑 Удалить везде", deleteCallbackPrefix+event.Vacancy.ID.String()),
		),
	)
	_, _ = sendWithLogError(b.api, msg)
}

func (b *Bot) handleCallback(ctx context.Context, query *botApi.CallbackQuery) {
	if query.From == nil || !strings.HasPrefix(query.Data, deleteCallbackPrefix) {
		return
	}
	if !b.deps.IsAdmin(query.From.ID) {
		requestWithLogError(b.api, botApi.NewCallback(query.ID, accessDenied))
		return
	}

	id, err := uuid.Parse(strings.TrimPrefix(query.Data, deleteCallbackPrefix))
	if err != nil {
		log.Warnf("malformed delete callback %q", query.Data)
		requestWithLogError(b.api, botApi.NewCallback(query.ID, "Некорректный идентификатор"))
		return
	}

	report, err := b.deps.Admin.DeleteVacancy(ctx, id)
	if err != nil {
		requestWithLogError(b.api, botApi.NewCallback(query.ID, errorReply(err)))
		return
	}
	requestWithLogError(b.api, botApi.NewCallback(query.ID,
		fmt.Sprintf("Удалено, отозвано сообщений: %d", report.Retracted)))

	if query.Message != nil {
		requestWithLogError(b.api, botApi.NewDeleteMessage(query.Message.Chat.ID, query.Message.MessageID))
	}
}
