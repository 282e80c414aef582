package auth

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// User is the signed-in shopper.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Session is the authentication collaborator that gates cart and checkout actions.
type Session interface {
	CurrentUser() (User, bool)
	IsAuthenticated() bool
	Token() string
}

// TokenSession is a Session backed by a bearer JWT. The token is not verified here;
// verification happens once at the edge, this only tracks identity and expiry.
type TokenSession struct {
	mu     sync.RWMutex
	token  string
	claims jwt.MapClaims
	now    func() time.Time
}

func NewTokenSession(token string) *TokenSession {
	s := &TokenSession{now: time.Now}
	s.SetToken(token)
	return s
}

// SetToken swaps in a refreshed token. Unparseable tokens leave the session signed out.
func (s *TokenSession) SetToken(token string) {
	claims := jwt.MapClaims{}
	if token != "" {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			token, claims = "", jwt.MapClaims{}
		}
	}

	s.mu.Lock()
	s.token = token
	s.claims = claims
	s.mu.Unlock()
}

// Clear signs the session out.
func (s *TokenSession) Clear() {
	s.SetToken("")
}

func (s *TokenSession) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *TokenSession) CurrentUser() (User, bool) {
	if !s.IsAuthenticated() {
		return User{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return UserFromClaims(s.claims)
}

func (s *TokenSession) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return false
	}
	return s.claims.VerifyExpiresAt(s.now().Unix(), false)
}
