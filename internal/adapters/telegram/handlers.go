package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tg "github.com/amarnathcjd/gogram/telegram"
	"github.com/sirupsen/logrus"

	"github.com/billaspace/anonxmusic/internal/application"
	"github.com/billaspace/anonxmusic/internal/domain"
	"github.com/billaspace/anonxmusic/internal/ports"
)

// Handlers wires the chat commands to the application services. Every
// handler is thin orchestration glue; the services own the semantics.
type Handlers struct {
	pool       *application.AssistantPool
	dispatcher *application.BroadcastDispatcher
	bans       *application.GlobalBanRegistry
	afk        *application.AFKTracker
	resolver   ports.TrackResolver
	served     ports.ServedStore
	logChat    int64
	sudoers    map[int64]struct{}
	log        *logrus.Logger
}

type HandlerConfig struct {
	Pool       *application.AssistantPool
	Dispatcher *application.BroadcastDispatcher
	Bans       *application.GlobalBanRegistry
	AFK        *application.AFKTracker
	Resolver   ports.TrackResolver
	Served     ports.ServedStore
	LogChat    int64
	Sudoers    []int64
	Logger     *logrus.Logger
}

func NewHandlers(cfg HandlerConfig) *Handlers {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	sudoers := make(map[int64]struct{}, len(cfg.Sudoers))
	for _, id := range cfg.Sudoers {
		sudoers[id] = struct{}{}
	}

	return &Handlers{
		pool:       cfg.Pool,
		dispatcher: cfg.Dispatcher,
		bans:       cfg.Bans,
		afk:        cfg.AFK,
		resolver:   cfg.Resolver,
		served:     cfg.Served,
		logChat:    cfg.LogChat,
		sudoers:    sudoers,
		log:        cfg.Logger,
	}
}

func (h *Handlers) Register(client *tg.Client) {
	for _, binding := range h.commandBindings() {
		client.On(binding.pattern, binding.handler)
	}
	client.On("message", h.onMessage)
	client.On("participant", h.onParticipant)
}

type commandBinding struct {
	pattern string
	handler func(*tg.NewMessage) error
}

// commandBindings uses gogram's cmd: pattern form, which matches the exact
// command word; a bare regex prefix like "/gban" would also fire for
// "/gbanlist". Default-group handlers run concurrently, so the ban gate is
// wrapped around each command handler instead of relying on the message
// intake hook to run first.
func (h *Handlers) commandBindings() []commandBinding {
	return []commandBinding{
		{"cmd:gban", h.gated(h.sudo(h.onGban))},
		{"cmd:ungban", h.gated(h.sudo(h.onUngban))},
		{"cmd:gbanlist", h.gated(h.sudo(h.onGbanList))},
		{"cmd:broadcast", h.gated(h.sudo(h.onBroadcast))},
		{"cmd:song", h.gated(h.onSong)},
		{"cmd:afk", h.gated(h.onAFK)},
	}
}

// gated drops the command when the sender is globally banned, deleting the
// triggering message on the way out.
func (h *Handlers) gated(next func(*tg.NewMessage) error) func(*tg.NewMessage) error {
	return func(m *tg.NewMessage) error {
		if m.Sender != nil {
			ref := domain.MessageRef{Chat: m.ChatID(), ID: m.ID}
			if h.bans.Enforce(context.Background(), m.Sender.ID, ref) {
				return tg.EndGroup
			}
		}
		return next(m)
	}
}

func (h *Handlers) sudo(next func(*tg.NewMessage) error) func(*tg.NewMessage) error {
	return func(m *tg.NewMessage) error {
		if m.Sender == nil {
			return nil
		}
		if _, ok := h.sudoers[m.Sender.ID]; !ok {
			return nil
		}
		return next(m)
	}
}

// onMessage handles the non-command intake: ban enforcement on plain
// messages, AFK bookkeeping, and served-entity tracking. It runs in the same
// concurrent default group as the command handlers, which carry their own
// ban gate.
func (h *Handlers) onMessage(m *tg.NewMessage) error {
	ctx := context.Background()

	if m.Sender != nil {
		ref := domain.MessageRef{Chat: m.ChatID(), ID: m.ID}
		if h.bans.Enforce(ctx, m.Sender.ID, ref) {
			return tg.EndGroup
		}

		// An /afk message must not clear the mark its own handler is
		// setting; the handlers run concurrently.
		if !strings.HasPrefix(m.Text(), "/afk") {
			if gone, was := h.afk.Clear(m.Sender.ID); was {
				h.reply(m, fmt.Sprintf("%s is back after %s.", senderName(m), gone.Round(time.Second)))
			}
		}

		if m.IsReply() {
			if replied, err := m.GetReplyMessage(); err == nil && replied.Sender != nil {
				if status, away := h.afk.Lookup(replied.Sender.ID); away {
					if status.Reason != "" {
						h.reply(m, fmt.Sprintf("They are AFK: %s", status.Reason))
					} else {
						h.reply(m, "They are AFK right now.")
					}
				}
			}
		}
	}

	if m.IsGroup() {
		if err := h.served.AddServedChat(context.Background(), m.ChatID()); err != nil {
			h.log.WithError(err).Debug("could not record served chat")
		}
	} else if m.IsPrivate() && m.Sender != nil {
		if err := h.served.AddServedUser(context.Background(), m.Sender.ID); err != nil {
			h.log.WithError(err).Debug("could not record served user")
		}
	}

	return nil
}

func (h *Handlers) onGban(m *tg.NewMessage) error {
	target, err := h.targetUser(m)
	if err != nil {
		h.reply(m, "Reply to a user or pass a user id.")
		return tg.EndGroup
	}
	if target == m.Sender.ID {
		h.reply(m, "You cannot globally ban yourself.")
		return tg.EndGroup
	}
	if _, ok := h.sudoers[target]; ok {
		h.reply(m, "Sudo users cannot be banned.")
		return tg.EndGroup
	}
	if h.bans.IsBanned(target) {
		h.reply(m, "That user is already globally banned.")
		return tg.EndGroup
	}

	report, err := h.bans.Ban(context.Background(), target)
	if err != nil {
		h.reply(m, fmt.Sprintf("Ban recorded, sweep failed: %v", err))
		return tg.EndGroup
	}

	h.reply(m, fmt.Sprintf("Globally banned %d, removed from %d of %d chats.", target, report.Swept, report.Chats))
	return tg.EndGroup
}

func (h *Handlers) onUngban(m *tg.NewMessage) error {
	target, err := h.targetUser(m)
	if err != nil {
		h.reply(m, "Reply to a user or pass a user id.")
		return tg.EndGroup
	}
	if !h.bans.IsBanned(target) {
		h.reply(m, "That user is not globally banned.")
		return tg.EndGroup
	}

	report, err := h.bans.Unban(context.Background(), target)
	if err != nil {
		h.reply(m, fmt.Sprintf("Unban recorded, sweep failed: %v", err))
		return tg.EndGroup
	}

	h.reply(m, fmt.Sprintf("Lifted the global ban for %d in %d chats.", target, report.Swept))
	return tg.EndGroup
}

func (h *Handlers) onGbanList(m *tg.NewMessage) error {
	users := h.bans.BannedUsers()
	if len(users) == 0 {
		h.reply(m, "No globally banned users.")
		return tg.EndGroup
	}

	var b strings.Builder
	b.WriteString("Globally banned users:\n")
	for i, user := range users {
		fmt.Fprintf(&b, "%d. %d\n", i+1, user)
	}
	h.reply(m, b.String())
	return tg.EndGroup
}

// onBroadcast understands the original flag set: -user, -nobot, -assistant,
// -pin, -pinloud. A replied-to message is forwarded; otherwise the text
// after the flags is sent literally.
func (h *Handlers) onBroadcast(m *tg.NewMessage) error {
	text := m.Text()

	job := domain.BroadcastJob{
		Audience: domain.BroadcastAudience{
			ServedChats: !strings.Contains(text, "-nobot"),
			ServedUsers: strings.Contains(text, "-user"),
			Assistants:  strings.Contains(text, "-assistant"),
		},
	}
	switch {
	case strings.Contains(text, "-pinloud"):
		job.Pin = domain.PinLoud
	case strings.Contains(text, "-pin"):
		job.Pin = domain.PinSilent
	default:
		job.Pin = domain.PinNone
	}

	if m.IsReply() {
		replied, err := m.GetReplyMessage()
		if err != nil {
			h.reply(m, "Could not read the replied message.")
			return tg.EndGroup
		}
		job.Payload.Forward = &domain.ForwardRef{FromChat: m.ChatID(), MessageID: replied.ID}
	} else {
		payload := text
		for _, flag := range []string{"/broadcast", "-pinloud", "-pin", "-nobot", "-assistant", "-user"} {
			payload = strings.ReplaceAll(payload, flag, "")
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			h.reply(m, "Give me something to broadcast.")
			return tg.EndGroup
		}
		job.Payload.Text = payload
	}

	h.reply(m, "Broadcast started.")

	report, err := h.dispatcher.Broadcast(context.Background(), job)
	if errors.Is(err, domain.ErrBroadcastBusy) {
		h.reply(m, "Another broadcast is still running, try again later.")
		return tg.EndGroup
	}
	if err != nil {
		h.reply(m, fmt.Sprintf("Broadcast failed: %v", err))
		return tg.EndGroup
	}

	summary := fmt.Sprintf("Broadcast finished: %d/%d delivered, %d pinned, %d abandoned.",
		report.Delivered, report.Attempted, report.Pinned, report.Abandoned)
	for slot, fanout := range report.Assistant {
		summary += fmt.Sprintf("\nAssistant %d: %d/%d dialogs.", slot, fanout.Delivered, fanout.Attempted)
	}
	h.reply(m, summary)
	return tg.EndGroup
}

func (h *Handlers) onSong(m *tg.NewMessage) error {
	query := strings.TrimSpace(strings.TrimPrefix(m.Text(), "/song"))
	if query == "" {
		h.reply(m, "Usage: /song <link or query>")
		return tg.EndGroup
	}

	track, err := h.resolver.Resolve(context.Background(), query)
	switch {
	case errors.Is(err, domain.ErrTrackNotFound):
		h.reply(m, "No track found for that query.")
	case errors.Is(err, domain.ErrTrackUnsupported):
		h.reply(m, "That source is not supported.")
	case err != nil:
		h.reply(m, "Track lookup failed, try again later.")
		h.log.WithError(err).Warn("track resolution failed")
	default:
		h.reply(m, fmt.Sprintf("%s (%s)\n%s", track.Title, track.Duration.Round(time.Second), track.MediaURL))
	}
	return tg.EndGroup
}

func (h *Handlers) onAFK(m *tg.NewMessage) error {
	if m.Sender == nil {
		return nil
	}

	reason := strings.TrimSpace(strings.TrimPrefix(m.Text(), "/afk"))
	h.afk.Set(m.Sender.ID, reason)

	if reason != "" {
		h.reply(m, fmt.Sprintf("%s is now AFK: %s", senderName(m), reason))
	} else {
		h.reply(m, fmt.Sprintf("%s is now AFK.", senderName(m)))
	}
	return tg.EndGroup
}

// onParticipant reports the bot being added to or removed from a group at
// the log destination, best-effort.
func (h *Handlers) onParticipant(update *tg.ParticipantUpdate) error {
	me := update.Client.Me()
	if me == nil || update.User == nil || update.User.ID != me.ID {
		return nil
	}

	var notice string
	switch {
	case update.IsAdded():
		notice = fmt.Sprintf("#NewGroup\nChat ID: %d\nChat Title: %s", update.ChannelID(), chatTitle(update))
		if err := h.served.AddServedChat(context.Background(), update.ChannelID()); err != nil {
			h.log.WithError(err).Debug("could not record served chat")
		}
	case update.IsKicked(), update.IsLeft():
		notice = fmt.Sprintf("#LeftGroup\nChat ID: %d\nChat Title: %s", update.ChannelID(), chatTitle(update))
	default:
		return nil
	}

	if _, err := update.Client.SendMessage(h.logChat, notice); err != nil {
		h.log.WithError(err).Debug("could not deliver group notice")
	}
	return nil
}

func (h *Handlers) targetUser(m *tg.NewMessage) (int64, error) {
	if m.IsReply() {
		replied, err := m.GetReplyMessage()
		if err == nil && replied.Sender != nil {
			return replied.Sender.ID, nil
		}
	}

	fields := strings.Fields(m.Text())
	if len(fields) < 2 {
		return 0, errors.New("no target")
	}
	return strconv.ParseInt(fields[1], 10, 64)
}

func (h *Handlers) reply(m *tg.NewMessage, text string) {
	if _, err := m.Reply(text); err != nil {
		h.log.WithError(err).Debug("reply failed")
	}
}

func senderName(m *tg.NewMessage) string {
	if m.Sender == nil {
		return "Someone"
	}
	if m.Sender.Username != "" {
		return "@" + m.Sender.Username
	}
	return m.Sender.FirstName
}

func chatTitle(update *tg.ParticipantUpdate) string {
	if update.Channel != nil {
		return update.Channel.Title
	}
	return "unknown"
}
