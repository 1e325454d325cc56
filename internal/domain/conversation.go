package domain

// Turn is a single persisted backend exchange: the user's message and the
// agent's reply.
type Turn struct {
	PK        string
	SK        string
	SessionID string
	UserID    string
	Text      string
	Answer    string
	Status    string
	TTL       int64
}

// SessionMeta stores aggregate state for a backend agent session.
type SessionMeta struct {
	PK           string
	SK           string
	SessionID    string
	UserID       string
	LastActivity string
	Turns        int
	TTL          int64
}
