package httpapi

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const sessionCookieName = "pastelaria_session"

// AuthManager validates the stand's shared access key and issues the
// signed session tokens carried in the http-only cookie. There are no
// per-user accounts; everyone behind the counter shares one key.
type AuthManager struct {
	secret        []byte
	sessionTTL    time.Duration
	accessKeyHash string
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
}

func NewAuthManager(secret string, sessionTTL time.Duration, accessKey string) (*AuthManager, error) {
	if secret == "" {
		secret = "dev-change-me"
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	accessKey = strings.TrimSpace(accessKey)
	if accessKey == "" {
		return nil, errors.New("access key must not be empty")
	}
	hash, err := hashSecret(accessKey)
	if err != nil {
		return nil, err
	}

	return &AuthManager{
		secret:        []byte(secret),
		sessionTTL:    sessionTTL,
		accessKeyHash: hash,
	}, nil
}

// Login exchanges the shared access key for a signed session token.
func (a *AuthManager) Login(accessKey string) (string, time.Time, error) {
	accessKey = strings.TrimSpace(accessKey)
	if accessKey == "" {
		return "", time.Time{}, errors.New("invalid access key")
	}
	if bcrypt.CompareHashAndPassword([]byte(a.accessKeyHash), []byte(accessKey)) != nil {
		return "", time.Time{}, errors.New("invalid access key")
	}

	expiresAt := time.Now().UTC().Add(a.sessionTTL)
	token, err := a.sign(expiresAt)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (a *AuthManager) ParseToken(tokenStr string) error {
	claims := &sessionClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return errors.New("invalid or expired session")
	}
	return nil
}

func (a *AuthManager) SessionTTL() time.Duration {
	return a.sessionTTL
}

func (a *AuthManager) sign(expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "operator",
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "pastelaria",
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func hashSecret(value string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(value), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
