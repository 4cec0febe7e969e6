package domain

type ConnectionState string

const (
	StateUnstarted         ConnectionState = "unstarted"
	StateStarting          ConnectionState = "starting"
	StateLive              ConnectionState = "live"
	StateFailedAuth        ConnectionState = "failed_auth"
	StateFailedUnreachable ConnectionState = "failed_unreachable"
	StateStopped           ConnectionState = "stopped"
)

// Terminal reports whether the state can never transition again without a
// full process restart.
func (s ConnectionState) Terminal() bool {
	switch s {
	case StateFailedAuth, StateFailedUnreachable, StateStopped:
		return true
	}
	return false
}

// Identity is the account's own resolved identity. It is defined if and only
// if the owning session is Live.
type Identity struct {
	ID       int64
	Name     string
	Username string
}

func (i Identity) IsZero() bool {
	return i == Identity{}
}

// MessageRef identifies one delivered message.
type MessageRef struct {
	Chat int64
	ID   int32
}

// Dialog is one entry of an assistant account's visible dialog list.
type Dialog struct {
	ChatID int64
	Title  string
}
