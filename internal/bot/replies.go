package bot

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/maxaizer/vacancy-dispatcher/internal/services"
	log "github.com/sirupsen/logrus"
)

const (
	internalErrorReply = "Внутренняя ошибка!"
	unknownCommand     = "Неизвестная команда!"
	expectedCommand    = "Ожидается команда. Список команд: /help"
	accessDenied       = "Команда доступна только администраторам."
)

var userErrors = []struct {
	err   error
	reply string
}{
	{services.ErrProfessionNotFound, "Профессия не найдена."},
	{services.ErrInvalidWeight, fmt.Sprintf("Вес должен быть числом от %.1f до %.1f.",
		entities.MinKeywordWeight, entities.MaxKeywordWeight)},
	{services.ErrAlreadyExists, "Такая запись уже существует."},
	{services.ErrKeywordNotFound, "Ключевое слово не найдено."},
	{services.ErrStopWordNotFound, "Стоп-слово не найдено."},
	{services.ErrUserNotFound, "Пользователь не найден. Начните с /start."},
	{services.ErrSubscriptionInactive, "Подписка неактивна."},
	{services.ErrInvalidMode, "Неизвестный режим. Доступны: instant, two_hours, button_click."},
	{services.ErrInvalidEmail, "Некорректный email."},
	{services.ErrVacancyNotFound, "Вакансия не найдена."},
	{services.ErrRescrapeDenied, "Парсинг hh.ru отключён."},
	{services.ErrBroadcastDenied, "Рассылки отключены."},
	{services.ErrEmptyBroadcast, "Рассылке нужен текст или фото."},
}

// errorReply renders a service error for the chat. Unexpected errors are logged.
func errorReply(err error) string {
	for _, ue := range userErrors {
		if errors.Is(err, ue.err) {
			return ue.reply
		}
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return "Некорректные данные: " + validationErrs.Error()
	}
	log.Errorf("command failed: %v", err)
	return internalErrorReply
}
