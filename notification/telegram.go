// Package notification implements spec.md §6's abstract chat/alert
// surface. Telegram is adapted directly from the teacher's
// notification/telegram.go (keyboard layout, user-allowlist poller
// middleware, command handlers) and re-themed from the teacher's
// spot-market buy/sell command surface to the engine's
// Start/Stop/Status/Positions control surface.
package notification

import (
	"fmt"
	"slices"
	"strings"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/raykavin/perpbot/core"
	"github.com/raykavin/perpbot/position"
)

// LoopController is the subset of the live feed loop's control surface
// the chat bot drives.
type LoopController interface {
	Start()
	Stop()
	Status() string
}

// Telegram implements core.Notifier plus the interactive chat control
// surface of spec.md §6.
type Telegram struct {
	client      *tb.Bot
	defaultMenu *tb.ReplyMarkup
	users       []int64

	loop     LoopController
	manager  *position.Manager
	log      core.Logger
}

// New constructs and wires a Telegram bot against the given loop
// controller and position manager.
func New(token string, users []int64, loop LoopController, manager *position.Manager, log core.Logger) (*Telegram, error) {
	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	poller := &tb.LongPoller{Timeout: 10 * time.Second}
	authPoller := tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			return false
		}
		if slices.Contains(users, u.Message.Sender.ID) {
			return true
		}
		if log != nil {
			log.WithField("user_id", u.Message.Sender.ID).Warn("unauthorized telegram user")
		}
		return false
	})

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     token,
		Poller:    authPoller,
	})
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	setupKeyboard(menu)
	if err := client.SetCommands([]tb.Command{
		{Text: "help", Description: "Show available commands"},
		{Text: "start", Description: "Start the trading loop"},
		{Text: "stop", Description: "Stop the trading loop"},
		{Text: "status", Description: "Show the loop's current status"},
		{Text: "positions", Description: "Show open positions and stats"},
	}); err != nil {
		return nil, fmt.Errorf("setting telegram commands: %w", err)
	}

	t := &Telegram{
		client:      client,
		defaultMenu: menu,
		users:       users,
		loop:        loop,
		manager:     manager,
		log:         log,
	}
	t.registerHandlers()
	return t, nil
}

func setupKeyboard(menu *tb.ReplyMarkup) {
	var (
		statusBtn    = menu.Text("/status")
		positionsBtn = menu.Text("/positions")
		startBtn     = menu.Text("/start")
		stopBtn      = menu.Text("/stop")
	)
	menu.Reply(
		menu.Row(statusBtn, positionsBtn),
		menu.Row(startBtn, stopBtn),
	)
}

func (t *Telegram) registerHandlers() {
	t.client.Handle("/help", t.helpHandle)
	t.client.Handle("/start", t.startHandle)
	t.client.Handle("/stop", t.stopHandle)
	t.client.Handle("/status", t.statusHandle)
	t.client.Handle("/positions", t.positionsHandle)
}

// Start launches the bot's polling goroutine and announces readiness.
func (t *Telegram) Start() {
	go t.client.Start()
	t.broadcast("engine online.", t.defaultMenu)
}

// Stop halts the bot's polling loop.
func (t *Telegram) Stop() {
	t.client.Stop()
}

// Notify implements core.Notifier.
func (t *Telegram) Notify(msg string) {
	t.broadcast(msg)
}

// NotifyError implements core.Notifier.
func (t *Telegram) NotifyError(err error) {
	t.broadcast(fmt.Sprintf("error: %s", err.Error()))
}

func (t *Telegram) broadcast(text string, options ...any) {
	for _, user := range t.users {
		if _, err := t.client.Send(&tb.User{ID: user}, text, options...); err != nil && t.log != nil {
			t.log.WithError(err).Warn("telegram send failed")
		}
	}
}

func (t *Telegram) helpHandle(m *tb.Message) {
	t.client.Send(m.Sender, strings.Join([]string{
		"/start - start the trading loop",
		"/stop - stop the trading loop",
		"/status - show current status",
		"/positions - show open positions and stats",
	}, "\n"))
}

func (t *Telegram) startHandle(m *tb.Message) {
	t.loop.Start()
	t.client.Send(m.Sender, "trading loop started.", t.defaultMenu)
}

func (t *Telegram) stopHandle(m *tb.Message) {
	t.loop.Stop()
	t.client.Send(m.Sender, "trading loop stopped.", t.defaultMenu)
}

func (t *Telegram) statusHandle(m *tb.Message) {
	t.client.Send(m.Sender, fmt.Sprintf("status: `%s`", t.loop.Status()))
}

func (t *Telegram) positionsHandle(m *tb.Message) {
	stats := t.manager.GetStats()
	t.client.Send(m.Sender, fmt.Sprintf(
		"*POSITIONS*\nopen: `%d`\nclosed trades: `%d`\nrealized net pnl: `%.4f`\nbalance: `%.4f`",
		stats.OpenPositions, stats.ClosedTrades, stats.TotalNetPnl, stats.TotalBalance))
}
