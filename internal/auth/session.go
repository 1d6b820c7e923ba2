package auth

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/config"
)

// Session is what the dashboard remembers about a signed-in user.
type Session struct {
	Token    string    `json:"token"`
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name,omitempty"`
	Role     string    `json:"role,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
}

// SessionStore keeps the session in a signed (and, with a block key,
// encrypted) cookie.
type SessionStore struct {
	codec  *securecookie.SecureCookie
	name   string
	maxAge time.Duration
	secure bool
}

func NewSessionStore(cfg config.SessionConfig) *SessionStore {
	var block []byte
	if cfg.BlockKey != "" {
		block = []byte(cfg.BlockKey)
	}
	codec := securecookie.New([]byte(cfg.HashKey), block)
	codec.MaxAge(int(cfg.MaxAge.Seconds()))
	codec.SetSerializer(securecookie.JSONEncoder{})
	return &SessionStore{
		codec:  codec,
		name:   cfg.CookieName,
		maxAge: cfg.MaxAge,
		secure: cfg.Secure,
	}
}

func (s *SessionStore) Save(w http.ResponseWriter, sess *Session) error {
	if sess.IssuedAt.IsZero() {
		sess.IssuedAt = time.Now()
	}
	value, err := s.codec.Encode(s.name, sess)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Load returns the session carried by r, or an error when there is none or
// it does not verify.
func (s *SessionStore) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(s.name)
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := s.codec.Decode(s.name, cookie.Value, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SessionStore) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
