package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/strelkabot/internal/logging"
	"github.com/eliseohh/strelkabot/internal/strelka"
)

const maxCardDigits = 20

const (
	msgHelp = "Привет. Я бот для проверки баланса Стрелки.\n\n" +
		"Команды:\n" +
		"/setcard <номер_карты> — сохранить номер карты\n" +
		"/card — показать сохраненный номер\n" +
		"/balance — запросить баланс карты"
	msgSetCardUsage  = "Использование: /setcard <номер_карты>"
	msgDigitsOnly    = "Номер карты должен содержать только цифры."
	msgCardLength    = "Номер карты слишком длинный."
	msgNoUser        = "Не удалось определить пользователя."
	msgNoCard        = "Карта не сохранена. Сначала выполните /setcard <номер_карты>"
	msgStorageDown   = "Хранилище недоступно, попробуйте позже."
	msgRequesting    = "Запрашиваю данные по карте..."
	msgBalanceFailed = "Не удалось получить баланс, попробуйте позже."
	msgFreeText      = "Я понимаю только команды. Список: /start"
)

// CardStore is the persistence the handlers need.
type CardStore interface {
	GetCard(ctx context.Context, userID int64) (string, bool, error)
	SetCard(ctx context.Context, userID int64, card string) error
}

// BalanceFetcher looks up a card's status upstream.
type BalanceFetcher interface {
	Fetch(ctx context.Context, card string) (*strelka.Status, error)
}

type Bot struct {
	api     *tele.Bot
	cards   CardStore
	balance BalanceFetcher
	log     *clog.Logger
	cfg     Config
}

type Config struct {
	Token       string
	PollTimeout time.Duration
	// LookupTimeout bounds a whole /balance upstream call.
	LookupTimeout time.Duration
	// Offline skips the getMe call on startup.
	Offline bool
}

func New(cfg Config, cards CardStore, balance BalanceFetcher, logger *clog.Logger) (*Bot, error) {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With("component", "bot")

	pref := tele.Settings{
		Token:   cfg.Token,
		Offline: cfg.Offline,
		Poller:  &tele.LongPoller{Timeout: cfg.PollTimeout},
		OnError: func(err error, c tele.Context) {
			logger.Error("telegram update failed", "err", err)
		},
	}

	api, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}

	b := &Bot{api: api, cards: cards, balance: balance, log: logger, cfg: cfg}
	b.register()
	return b, nil
}

// Start polls Telegram until Stop is called.
func (b *Bot) Start() {
	b.log.Info("bot started", "username", b.api.Me.Username)
	b.api.Start()
}

func (b *Bot) Stop() {
	b.api.Stop()
}

func (b *Bot) register() {
	b.api.Handle("/start", b.handleStart)
	b.api.Handle("/setcard", b.handleSetCard)
	b.api.Handle("/card", b.handleCard)
	b.api.Handle("/balance", b.handleBalance)

	b.api.Handle(tele.OnText, b.handleText)
}

func (b *Bot) handleStart(c tele.Context) error {
	return c.Send(msgHelp)
}

func (b *Bot) handleSetCard(c tele.Context) error {
	card := strings.Join(strings.Fields(c.Message().Payload), "")
	if card == "" {
		return c.Send(msgSetCardUsage)
	}
	if !isDigits(card) {
		return c.Send(msgDigitsOnly)
	}
	if len(card) > maxCardDigits {
		return c.Send(msgCardLength)
	}

	user := c.Sender()
	if user == nil {
		return c.Send(msgNoUser)
	}

	if err := b.cards.SetCard(context.Background(), user.ID, card); err != nil {
		b.log.Error("save card", "user", user.ID, "err", err)
		return c.Send(msgStorageDown)
	}
	return c.Send(fmt.Sprintf("Карта сохранена: %s", card))
}

func (b *Bot) handleCard(c tele.Context) error {
	card, ok, err := b.lookupCard(c)
	if !ok || err != nil {
		return err
	}
	return c.Send(fmt.Sprintf("Сохраненная карта: %s", card))
}

func (b *Bot) handleBalance(c tele.Context) error {
	card, ok, err := b.lookupCard(c)
	if !ok || err != nil {
		return err
	}

	if err := c.Send(msgRequesting); err != nil {
		return err
	}

	ctx := context.Background()
	if b.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.LookupTimeout)
		defer cancel()
	}

	reqID := uuid.NewString()
	start := time.Now()
	st, err := b.balance.Fetch(ctx, card)
	if err != nil {
		var apiErr *strelka.APIError
		if errors.As(err, &apiErr) {
			b.log.Warn("strelka api error", "req", reqID, "user", c.Sender().ID, "msg", apiErr.Message)
			return c.Send("Ошибка API: " + apiErr.Message)
		}
		b.log.Error("balance lookup", "req", reqID, "user", c.Sender().ID, "elapsed", time.Since(start), "err", err)
		return c.Send(msgBalanceFailed)
	}

	b.log.Debug("balance lookup", "req", reqID, "user", c.Sender().ID, "elapsed", time.Since(start))
	return c.Send(st.Format())
}

func (b *Bot) handleText(c tele.Context) error {
	return c.Send(msgFreeText)
}

// lookupCard replies on its own whenever ok is false.
func (b *Bot) lookupCard(c tele.Context) (card string, ok bool, err error) {
	user := c.Sender()
	if user == nil {
		return "", false, c.Send(msgNoUser)
	}

	card, ok, err = b.cards.GetCard(context.Background(), user.ID)
	if err != nil {
		b.log.Error("load card", "user", user.ID, "err", err)
		return "", false, c.Send(msgStorageDown)
	}
	if !ok {
		return "", false, c.Send(msgNoCard)
	}
	return card, true, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
