package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const adminHelpText = `Команды администратора:
/add_profession <название> | <описание>
/remove_profession <название>
/set_description <название> | <описание>
/add_keyword <профессия> | <слово> | <вес 0.1-1.0>
/remove_keyword <профессия> | <слово>
/add_stop_word <слово>
/remove_stop_word <слово>
/stats - отправки по профессиям
/rescrape - перезапустить парсинг hh.ru
/delete_vacancy <id>
/broadcast <all|subscribed|unsubscribed|expired|профессия> | <текст> | [file id фото]
/grant <telegram id> <дней>
/ban <telegram id>
/unban <telegram id>`

func (b *Bot) adminCommandSet() map[string]command {
	return map[string]command{
		"admin":             func(context.Context, *botApi.Message, string) string { return adminHelpText },
		"add_profession":    b.addProfession,
		"remove_profession": b.removeProfession,
		"set_description":   b.setDescription,
		"add_keyword":       b.addKeyword,
		"remove_keyword":    b.removeKeyword,
		"add_stop_word":     b.addStopWord,
		"remove_stop_word":  b.removeStopWord,
		"stats":             b.stats,
		"rescrape":          b.rescrape,
		"delete_vacancy":    b.deleteVacancy,
		"broadcast":         b.broadcast,
		"grant":             b.grant,
		"ban":               b.banCommand(true),
		"unban":             b.banCommand(false),
	}
}

func (b *Bot) addProfession(ctx context.Context, _ *botApi.Message, args string) string {
	name, description, _ := strings.Cut(args, "|")
	if strings.TrimSpace(name) == "" {
		return "Формат: /add_profession <название> | <описание>"
	}
	profession, err := b.deps.Admin.AddProfession(ctx, name, description)
	if err != nil {
		return errorReply(err)
	}
	return fmt.Sprintf("Профессия «%s» добавлена.", profession.Name)
}

func (b *Bot) removeProfession(ctx context.Context, _ *botApi.Message, args string) string {
	if strings.TrimSpace(args) == "" {
		return "Формат: /remove_profession <название>"
	}
	if err := b.deps.Admin.RemoveProfession(ctx, args); err != nil {
		return errorReply(err)
	}
	return "Профессия удалена вместе с ключевыми словами и вакансиями."
}

func (b *Bot) setDescription(ctx context.Context, _ *botApi.Message, args string) string {
	parts, ok := splitArgs(args, 2)
	if !ok {
		return "Формат: /set_description <название> | <описание>"
	}
	if err := b.deps.Admin.SetDescription(ctx, parts[0], parts[1]); err != nil {
		return errorReply(err)
	}
	return "Описание обновлено."
}

func (b *Bot) addKeyword(ctx context.Context, _ *botApi.Message, args string) string {
	parts, ok := splitArgs(args, 3)
	if !ok {
		return "Формат: /add_keyword <профессия> | <слово> | <вес 0.1-1.0>"
	}
	keyword, err := b.deps.Admin.AddKeyword(ctx, parts[0], parts[1], parts[2])
	if err != nil {
		return errorReply(err)
	}
	return fmt.Sprintf("Ключевое слово «%s» с весом %.2f сохранено.", keyword.Word, keyword.Weight)
}

func (b *Bot) removeKeyword(ctx context.Context, _ *botApi.Message, args string) string {
	parts, ok := splitArgs(args, 2)
	if !ok {
		return "Формат: /remove_keyword <профессия> | <слово>"
	}
	if err := b.deps.Admin.RemoveKeyword(ctx, parts[0], parts[1]); err != nil {
		return errorReply(err)
	}
	return "Ключевое слово удалено."
}

func (b *Bot) addStopWord(ctx context.Context, _ *botApi.Message, args string) string {
	if strings.TrimSpace(args) == "" {
		return "Формат: /add_stop_word <слово>"
	}
	if err := b.deps.Admin.AddStopWord(ctx, args); err != nil {
		return errorReply(err)
	}
	return "Стоп-слово добавлено."
}

func (b *Bot) removeStopWord(ctx context.Context, _ *botApi.Message, args string) string {
	if strings.TrimSpace(args) == "" {
		return "Формат: /remove_stop_word <слово>"
	}
	if err := b.deps.Admin.RemoveStopWord(ctx, args); err != nil {
		return errorReply(err)
	}
	return "Стоп-слово удалено."
}

func (b *Bot) stats(ctx context.Context, _ *botApi.Message, _ string) string {
	stats, err := b.deps.Admin.SendStats(ctx)
	if err != nil {
		return errorReply(err)
	}
	if len(stats) == 0 {
		return "Профессий пока нет."
	}

	var sb strings.Builder
	sb.WriteString("Отправлено вакансий:\n")
	for _, stat := range stats {
		sb.WriteString(fmt.Sprintf("%s: %d\n", stat.Name, stat.Sent))
	}
	return strings.TrimSpace(sb.String())
}

func (b *Bot) rescrape(ctx context.Context, _ *botApi.Message, _ string) string {
	n, err := b.deps.Admin.Rescrape(ctx)
	if err != nil {
		return errorReply(err)
	}
	return fmt.Sprintf("Парсинг hh.ru завершён, новых вакансий: %d.", n)
}

func (b *Bot) deleteVacancy(ctx context.Context, _ *botApi.Message, args string) string {
	id, err := uuid.Parse(strings.TrimSpace(args))
	if err != nil {
		return "Формат: /delete_vacancy <id>"
	}
	return b.deleteVacancyReply(ctx, id)
}

func (b *Bot) deleteVacancyReply(ctx context.Context, id uuid.UUID) string {
	report, err := b.deps.Admin.DeleteVacancy(ctx, id)
	if err != nil {
		return errorReply(err)
	}
	return fmt.Sprintf("Вакансия удалена. Отозвано сообщений: %d, не удалось: %d.", report.Retracted, report.Failed)
}

func (b *Bot) broadcast(ctx context.Context, _ *botApi.Message, args string) string {
	parts := lo.Map(strings.SplitN(args, "|", 3), func(part string, _ int) string {
		return strings.TrimSpace(part)
	})
	if len(parts) < 2 || parts[0] == "" {
		return "Формат: /broadcast <аудитория> | <текст> | [file id фото]"
	}
	var photoRef string
	if len(parts) == 3 {
		photoRef = parts[2]
	}

	n, err := b.deps.Admin.Broadcast(ctx, parts[0], parts[1], photoRef)
	if err != nil {
		return errorReply(err)
	}
	return fmt.Sprintf("Рассылка поставлена в очередь для %d пользователей.", n)
}

func (b *Bot) grant(ctx context.Context, _ *botApi.Message, args string) string {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "Формат: /grant <telegram id> <дней>"
	}
	userID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return "Некорректный telegram id."
	}
	days, err := strconv.Atoi(fields[1])
	if err != nil || days <= 0 {
		return "Количество дней должно быть положительным числом."
	}

	until, err := b.deps.Subscribers.GrantSubscription(ctx, userID, days)
	if err != nil {
		return errorReply(err)
	}
	return fmt.Sprintf("Подписка пользователя %d активна до %s (UTC).", userID, until.Format("02.01.2006 15:04"))
}

func (b *Bot) banCommand(banned bool) command {
	return func(ctx context.Context, _ *botApi.Message, args string) string {
		userID, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
		if err != nil {
			return "Укажите telegram id пользователя."
		}
		if err = b.deps.Subscribers.Ban(ctx, userID, banned); err != nil {
			return errorReply(err)
		}
		if banned {
			return "Пользователь заблокирован."
		}
		return "Пользователь разблокирован."
	}
}
