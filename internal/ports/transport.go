package ports

import (
	"context"

	"github.com/billaspace/anonxmusic/internal/domain"
)

// Transport authenticates one credential against the messaging network.
// Connect returns *domain.FloodWaitError (wrapped) on a rate-limit signal and
// wraps domain.ErrUnauthorized when the credential itself is rejected.
type Transport interface {
	Connect(ctx context.Context, credential domain.SessionCredential) (Conn, error)
}

// Conn is one authenticated connection, either the primary bot account or an
// assistant. All methods surface rate limits as *domain.FloodWaitError; the
// caller decides whether to wait or abandon.
type Conn interface {
	Disconnect() error

	SendMessage(ctx context.Context, chat int64, text string) (domain.MessageRef, error)
	ForwardMessage(ctx context.Context, to int64, ref domain.ForwardRef) (domain.MessageRef, error)
	Pin(ctx context.Context, ref domain.MessageRef, silent bool) error
	DeleteMessage(ctx context.Context, ref domain.MessageRef) error

	JoinVenue(ctx context.Context, venue string) error
	SelfIdentity(ctx context.Context) (domain.Identity, error)

	// Dialogs returns a snapshot of the account's visible dialogs, one pass
	// per invocation.
	Dialogs(ctx context.Context) ([]domain.Dialog, error)

	BanMember(ctx context.Context, chat, user int64) error
	UnbanMember(ctx context.Context, chat, user int64) error
	DeleteMemberHistory(ctx context.Context, chat, user int64) error
	VideoChatAdmins(ctx context.Context, chat int64) ([]int64, error)
}
