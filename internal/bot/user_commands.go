package bot

import (
	"context"
	"fmt"
	"strings"

	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
)

const helpText = `Команды:
/professions - список профессий
/select <профессия> - подписаться на профессию
/unselect <профессия> - отписаться от профессии
/mode <instant|two_hours|button_click> - режим доставки
/vacancies - получить накопленные вакансии
/email <адрес> - указать email`

var modeDescriptions = map[entities.DeliveryMode]string{
	entities.ModeInstant:      "вакансии приходят сразу",
	entities.ModeTwoHourBatch: "вакансии приходят раз в два часа",
	entities.ModePullOnDemand: "вакансии копятся до команды /vacancies",
}

func (b *Bot) userCommandSet() map[string]command {
	return map[string]command{
		"start":       b.start,
		"help":        b.help,
		"mode":        b.mode,
		"professions": b.professions,
		"select":      b.selectProfession,
		"unselect":    b.unselectProfession,
		"vacancies":   b.vacancies,
		"email":       b.email,
	}
}

func (b *Bot) start(ctx context.Context, message *botApi.Message, _ string) string {
	err := b.deps.Subscribers.Register(ctx, message.From.ID, message.From.FirstName, message.From.UserName)
	if err != nil {
		return errorReply(err)
	}
	return fmt.Sprintf("Привет, %s! Я присылаю вакансии по выбранным профессиям.\n\n%s",
		message.From.FirstName, helpText)
}

func (b *Bot) help(context.Context, *botApi.Message, string) string {
	return helpText
}

func (b *Bot) mode(ctx context.Context, message *botApi.Message, args string) string {
	if strings.TrimSpace(args) == "" {
		return "Укажите режим: /mode instant, /mode two_hours или /mode button_click"
	}
	mode, err := b.deps.Subscribers.SetMode(ctx, message.From.ID, args)
	if err != nil {
		return errorReply(err)
	}
	return fmt.Sprintf("Режим доставки изменён: %s.", modeDescriptions[mode])
}

func (b *Bot) professions(ctx context.Context, message *botApi.Message, _ string) string {
	choices, err := b.deps.Subscribers.ListProfessions(ctx, message.From.ID)
	if err != nil {
		return errorReply(err)
	}
	if len(choices) == 0 {
		return "Список профессий пуст."
	}

	var sb strings.Builder
	sb.WriteString("Профессии:\n")
	for _, choice := range choices {
		mark := "▫️"
		if choice.Selected {
			mark = "✅"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", mark, choice.Name))
	}
	return strings.TrimSpace(sb.String())
}

func (b *Bot) selectProfession(ctx context.Context, message *botApi.Message, args string) string {
	if strings.TrimSpace(args) == "" {
		return "Укажите профессию: /select <профессия>"
	}
	if err := b.deps.Subscribers.SelectProfession(ctx, message.From.ID, args); err != nil {
		return errorReply(err)
	}
	return "Подписка на профессию оформлена."
}

func (b *Bot) unselectProfession(ctx context.Context, message *botApi.Message, args string) string {
	if strings.TrimSpace(args) == "" {
		return "Укажите профессию: /unselect <профессия>"
	}
	if err := b.deps.Subscribers.UnselectProfession(ctx, message.From.ID, args); err != nil {
		return errorReply(err)
	}
	return "Вы отписались от профессии."
}

func (b *Bot) vacancies(ctx context.Context, message *botApi.Message, _ string) string {
	n, err := b.deps.Backlog.PullBacklog(ctx, message.From.ID)
	if err != nil {
		return errorReply(err)
	}
	if n == 0 {
		return "Нет накопленных вакансий."
	}
	return fmt.Sprintf("Отправляю накопленные вакансии: %d.", n)
}

func (b *Bot) email(ctx context.Context, message *botApi.Message, args string) string {
	if err := b.deps.Subscribers.SetEmail(ctx, message.From.ID, args); err != nil {
		return errorReply(err)
	}
	return "Email сохранён."
}
