package domain

type SessionState string

const (
	SessionInitializing  SessionState = "initializing"
	SessionAuthenticated SessionState = "authenticated"
	SessionAnonymous     SessionState = "anonymous"
)

// Session is a point-in-time view of who is using the client. It is never
// persisted as one object: the access token lives in memory and the user in
// durable storage.
type Session struct {
	State       SessionState `json:"state"`
	User        *User        `json:"user,omitempty"`
	AccessToken string       `json:"-"`
}

func (s Session) Authenticated() bool {
	return s.State == SessionAuthenticated && s.User != nil && s.AccessToken != ""
}
