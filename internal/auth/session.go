package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

// SessionName is the cookie holding the signed-in user.
const SessionName = "kanban_session"

const userIDKey = "user_id"

// SessionOptions configures the session cookie.
type SessionOptions struct {
	Secret string
	Secure bool
	MaxAge int
}

// NewCookieStore returns a signed and encrypted cookie store. An empty secret
// generates a random one, which invalidates sessions on restart.
func NewCookieStore(opts SessionOptions) (*sessions.CookieStore, error) {
	var hashKey, blockKey []byte
	if opts.Secret == "" {
		hashKey = make([]byte, 64)
		blockKey = make([]byte, 32)
		if _, err := rand.Read(hashKey); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
		if _, err := rand.Read(blockKey); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
	} else {
		h := sha256.Sum256([]byte("hash:" + opts.Secret))
		b := sha256.Sum256([]byte("block:" + opts.Secret))
		hashKey, blockKey = h[:], b[:]
	}

	store := sessions.NewCookieStore(hashKey, blockKey)
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 14 * 24 * 60 * 60
	}
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(maxAge)
	return store, nil
}

// SessionUserID returns the user id stored in the session, if any.
func SessionUserID(sess *sessions.Session) (int64, bool) {
	id, ok := sess.Values[userIDKey].(int64)
	return id, ok && id > 0
}

// Login records userID in the session.
func Login(sess *sessions.Session, userID int64) {
	sess.Values[userIDKey] = userID
}

// Logout clears the session and expires the cookie.
func Logout(sess *sessions.Session) {
	delete(sess.Values, userIDKey)
	sess.Options.MaxAge = -1
}
