package bot

import (
	"context"
	"errors"
	"time"

	"github.com/asaskevich/EventBus"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/maxaizer/vacancy-dispatcher/internal/entities"
	"github.com/maxaizer/vacancy-dispatcher/internal/events"
	"github.com/maxaizer/vacancy-dispatcher/internal/services"
	log "github.com/sirupsen/logrus"
)

type subscriberService interface {
	Register(ctx context.Context, telegramID int64, firstName, username string) error
	SetMode(ctx context.Context, telegramID int64, raw string) (entities.DeliveryMode, error)
	SetEmail(ctx context.Context, telegramID int64, email string) error
	SelectProfession(ctx context.Context, telegramID int64, name string) error
	UnselectProfession(ctx context.Context, telegramID int64, name string) error
	ListProfessions(ctx context.Context, telegramID int64) ([]services.ProfessionChoice, error)
	GrantSubscription(ctx context.Context, telegramID int64, days int) (time.Time, error)
	Ban(ctx context.Context, telegramID int64, banned bool) error
}

type adminService interface {
	AddProfession(ctx context.Context, name, description string) (entities.Profession, error)
	RemoveProfession(ctx context.Context, name string) error
	SetDescription(ctx context.Context, name, description string) error
	AddKeyword(ctx context.Context, professionName, word, rawWeight string) (entities.Keyword, error)
	RemoveKeyword(ctx context.Context, professionName, word string) error
	AddStopWord(ctx context.Context, word string) error
	RemoveStopWord(ctx context.Context, word string) error
	SendStats(ctx context.Context) ([]entities.ProfessionStat, error)
	Rescrape(ctx context.Context) (int, error)
	DeleteVacancy(ctx context.Context, id uuid.UUID) (services.RetractionReport, error)
	Broadcast(ctx context.Context, audience, text, photoRef string) (int, error)
}

type backlogPuller interface {
	PullBacklog(ctx context.Context, userID int64) (int, error)
}

type updatesSource interface {
	GetUpdatesChan(config botApi.UpdateConfig) botApi.UpdatesChannel
	StopReceivingUpdates()
}

type Dependencies struct {
	Subscribers subscriberService
	Admin       adminService
	Backlog     backlogPuller
	IsAdmin     func(telegramID int64) bool
	AdminChatID int64
}

type Bot struct {
	api          apiInterface
	updates      updatesSource
	bus          EventBus.Bus
	deps         Dependencies
	userCommands map[string]command
	adminCmds    map[string]command
}

func NewBot(api *botApi.BotAPI, bus EventBus.Bus, deps Dependencies) (*Bot, error) {
	log.Infof("Authorized on account %s", api.Self.UserName)

	if err := botApi.SetLogger(log.StandardLogger()); err != nil {
		return nil, err
	}
	return newBot(api, api, bus, deps)
}

func newBot(api apiInterface, updates updatesSource, bus EventBus.Bus, deps Dependencies) (*Bot, error) {
	if bus == nil {
		return nil, errors.New("bus is nil")
	}
	if deps.Subscribers == nil || deps.Admin == nil || deps.Backlog == nil {
		return nil, errors.New("bot dependencies are incomplete")
	}
	if deps.IsAdmin == nil {
		deps.IsAdmin = func(int64) bool { return false }
	}

	b := &Bot{api: api, updates: updates, bus: bus, deps: deps}
	b.userCommands = b.userCommandSet()
	b.adminCmds = b.adminCommandSet()

	if deps.AdminChatID != 0 {
		if err := bus.SubscribeAsync(events.VacancyPersistedTopic, b.onVacancyPersisted, false); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	updateConfig := botApi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := b.updates.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) Stop() {
	b.updates.StopReceivingUpdates()
	b.bus.WaitAsync()
}

func (b *Bot) handleUpdate(ctx context.Context, update botApi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil || update.Message.From == nil {
		return
	}
	if update.Message.Chat.IsGroup() || update.Message.Chat.IsSuperGroup() {
		return
	}

	b.handleMessage(ctx, update.Message)
}

func (b *Bot) handleMessage(ctx context.Context, message *botApi.Message) {
	name := message.Command()
	var reply string

	if name == "" {
		reply = expectedCommand
	} else if cmd, ok := b.userCommands[name]; ok {
		reply = cmd(ctx, message, message.CommandArguments())
	} else if cmd, ok = b.adminCmds[name]; ok {
		if b.deps.IsAdmin(message.From.ID) {
			reply = cmd(ctx, message, message.CommandArguments())
		} else {
			reply = accessDenied
		}
	} else {
		reply = unknownCommand
	}

	if reply == "" {
		return
	}
	_, _ = sendWithLogError(b.api, botApi.NewMessage(message.Chat.ID, reply))
}
