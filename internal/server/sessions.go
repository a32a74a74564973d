package server

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionIssuerName = "find-the-impostor"

var (
	errSessionInvalid = errors.New("session is invalid")
	errSessionExpired = errors.New("session has expired")
)

// guestSession is an anonymous player identity. The user ID lives in the
// token subject, so no server-side session table is needed.
type guestSession struct {
	UserID    string
	Name      string
	Token     string
	ExpiresAt time.Time
}

type guestClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

type sessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func newSessionIssuer(secret string, ttl time.Duration) *sessionIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &sessionIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *sessionIssuer) Issue(name string) (guestSession, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	userID := uuid.NewString()
	claims := &guestClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    sessionIssuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return guestSession{}, err
	}
	return guestSession{
		UserID:    userID,
		Name:      name,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *sessionIssuer) Parse(tokenString string) (guestSession, error) {
	token, err := jwt.ParseWithClaims(tokenString, &guestClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errSessionInvalid
		}
		return s.secret, nil
	},
		jwt.WithIssuer(sessionIssuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return guestSession{}, errSessionExpired
		}
		return guestSession{}, errSessionInvalid
	}
	claims, ok := token.Claims.(*guestClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return guestSession{}, errSessionInvalid
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return guestSession{
		UserID:    claims.Subject,
		Name:      claims.Name,
		Token:     tokenString,
		ExpiresAt: expiresAt,
	}, nil
}
