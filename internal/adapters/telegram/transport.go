package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tg "github.com/amarnathcjd/gogram/telegram"

	"github.com/billaspace/anonxmusic/internal/domain"
	"github.com/billaspace/anonxmusic/internal/ports"
)

// Transport builds authenticated gogram clients from session credentials.
type Transport struct {
	appID   int32
	appHash string
}

var _ ports.Transport = (*Transport)(nil)

func NewTransport(appID int32, appHash string) *Transport {
	return &Transport{appID: appID, appHash: appHash}
}

func (t *Transport) Connect(_ context.Context, credential domain.SessionCredential) (ports.Conn, error) {
	client, err := tg.NewClient(tg.ClientConfig{
		AppID:         t.appID,
		AppHash:       t.appHash,
		StringSession: credential.Session,
		MemorySession: true,
		SessionName:   fmt.Sprintf("assistant%d", credential.Slot),
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	if _, err := client.Conn(); err != nil {
		return nil, translate(err)
	}

	return &Conn{client: client}, nil
}

// ConnectBot logs the primary bot account in with its token and returns both
// the wrapped connection and the raw client for handler registration.
func ConnectBot(appID int32, appHash, token string) (*Conn, *tg.Client, error) {
	client, err := tg.NewClient(tg.ClientConfig{
		AppID:         appID,
		AppHash:       appHash,
		MemorySession: true,
		SessionName:   "bot",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create bot client: %w", err)
	}

	if _, err := client.Conn(); err != nil {
		return nil, nil, translate(err)
	}
	if err := client.LoginBot(token); err != nil {
		return nil, nil, translate(err)
	}

	return &Conn{client: client}, client, nil
}

// Conn adapts one gogram client to ports.Conn.
type Conn struct {
	client *tg.Client
}

var _ ports.Conn = (*Conn)(nil)

func (c *Conn) Disconnect() error {
	return c.client.Stop()
}

func (c *Conn) SendMessage(_ context.Context, chat int64, text string) (domain.MessageRef, error) {
	message, err := c.client.SendMessage(chat, text)
	if err != nil {
		return domain.MessageRef{}, translate(err)
	}
	return domain.MessageRef{Chat: chat, ID: message.ID}, nil
}

func (c *Conn) ForwardMessage(_ context.Context, to int64, ref domain.ForwardRef) (domain.MessageRef, error) {
	messages, err := c.client.Forward(to, ref.FromChat, []int32{ref.MessageID})
	if err != nil {
		return domain.MessageRef{}, translate(err)
	}
	if len(messages) == 0 {
		return domain.MessageRef{}, fmt.Errorf("forward to %d returned no message", to)
	}
	return domain.MessageRef{Chat: to, ID: messages[0].ID}, nil
}

func (c *Conn) Pin(_ context.Context, ref domain.MessageRef, silent bool) error {
	if _, err := c.client.PinMessage(ref.Chat, ref.ID, &tg.PinOptions{Silent: silent}); err != nil {
		return translate(err)
	}
	return nil
}

func (c *Conn) DeleteMessage(_ context.Context, ref domain.MessageRef) error {
	if _, err := c.client.DeleteMessages(ref.Chat, []int32{ref.ID}); err != nil {
		return translate(err)
	}
	return nil
}

func (c *Conn) JoinVenue(_ context.Context, venue string) error {
	if _, err := c.client.JoinChannel(venue); err != nil {
		return translate(err)
	}
	return nil
}

func (c *Conn) SelfIdentity(_ context.Context) (domain.Identity, error) {
	me, err := c.client.GetMe()
	if err != nil {
		return domain.Identity{}, translate(err)
	}
	return domain.Identity{ID: me.ID, Name: strings.TrimSpace(me.FirstName + " " + me.LastName), Username: me.Username}, nil
}

func (c *Conn) Dialogs(_ context.Context) ([]domain.Dialog, error) {
	dialogs, err := c.client.GetDialogs()
	if err != nil {
		return nil, translate(err)
	}

	out := make([]domain.Dialog, 0, len(dialogs))
	for _, dialog := range dialogs {
		obj, ok := dialog.(*tg.DialogObj)
		if !ok {
			continue
		}
		if id := peerID(obj.Peer); id != 0 {
			out = append(out, domain.Dialog{ChatID: id})
		}
	}
	return out, nil
}

func (c *Conn) BanMember(_ context.Context, chat, user int64) error {
	if _, err := c.client.EditBanned(chat, user, &tg.BannedOptions{Ban: true}); err != nil {
		return translate(err)
	}
	return nil
}

func (c *Conn) UnbanMember(_ context.Context, chat, user int64) error {
	if _, err := c.client.EditBanned(chat, user, &tg.BannedOptions{Unban: true}); err != nil {
		return translate(err)
	}
	return nil
}

func (c *Conn) DeleteMemberHistory(_ context.Context, chat, user int64) error {
	peer, err := c.client.ResolvePeer(chat)
	if err != nil {
		return translate(err)
	}
	channel, ok := peer.(*tg.InputPeerChannel)
	if !ok {
		return fmt.Errorf("chat %d is not a channel", chat)
	}

	participant, err := c.client.ResolvePeer(user)
	if err != nil {
		return translate(err)
	}

	_, err = c.client.ChannelsDeleteParticipantHistory(
		&tg.InputChannelObj{ChannelID: channel.ChannelID, AccessHash: channel.AccessHash},
		participant,
	)
	if err != nil {
		return translate(err)
	}
	return nil
}

func (c *Conn) VideoChatAdmins(_ context.Context, chat int64) ([]int64, error) {
	participants, _, err := c.client.GetChatMembers(chat, &tg.ParticipantOptions{
		Filter: &tg.ChannelParticipantsAdmins{},
	})
	if err != nil {
		return nil, translate(err)
	}

	var admins []int64
	for _, participant := range participants {
		if participant.User == nil {
			continue
		}
		if participant.Rights != nil && participant.Rights.ManageCall {
			admins = append(admins, participant.User.ID)
		}
	}
	return admins, nil
}

func peerID(peer tg.Peer) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return -p.ChatID
	case *tg.PeerChannel:
		return -1000000000000 - p.ChannelID
	}
	return 0
}

// translate maps gogram errors onto the domain taxonomy: flood waits carry
// their exact duration, credential rejections wrap ErrUnauthorized.
func translate(err error) error {
	if err == nil {
		return nil
	}

	if wait := tg.GetFloodWait(err); wait > 0 {
		return &domain.FloodWaitError{Wait: time.Duration(wait) * time.Second}
	}

	message := err.Error()
	for _, marker := range []string{"AUTH_KEY_UNREGISTERED", "AUTH_KEY_INVALID", "SESSION_REVOKED", "SESSION_EXPIRED", "USER_DEACTIVATED", "UNAUTHORIZED"} {
		if strings.Contains(message, marker) {
			return fmt.Errorf("%s: %w", message, domain.ErrUnauthorized)
		}
	}

	return err
}
