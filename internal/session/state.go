package session

// State is the session lifecycle state.
type State int

const (
	StateConnecting State = iota
	StateAwaitingUserAuthorization
	StateAuthorizing
	StateAuthorized
	StateFailed
	StateDisconnected
)

var stateNames = map[State]string{
	StateConnecting:                "connecting",
	StateAwaitingUserAuthorization: "awaiting_user_authorization",
	StateAuthorizing:               "authorizing",
	StateAuthorized:                "authorized",
	StateFailed:                    "failed",
	StateDisconnected:              "disconnected",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Authorization is the user-facing view of the handshake progress.
type Authorization int

const (
	Unauthorized Authorization = iota
	PendingUserAccept
	Authorized
	AuthorizationFailed
)

func (a Authorization) String() string {
	switch a {
	case PendingUserAccept:
		return "pending_user_accept"
	case Authorized:
		return "authorized"
	case AuthorizationFailed:
		return "failed"
	default:
		return "unauthorized"
	}
}
