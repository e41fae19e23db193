package consent

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const CookieName = "cookie_consent"

type CookieOptions struct {
	Secret   string
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite
}

type consentClaims struct {
	Record
	jwt.RegisteredClaims
}

// CookieStore keeps the record in the visitor's browser as a signed token.
// It is bound to one request/response pair.
type CookieStore struct {
	r    *http.Request
	w    http.ResponseWriter
	opts CookieOptions
	now  func() time.Time

	saved *Record
}

func NewCookieStore(w http.ResponseWriter, r *http.Request, opts CookieOptions) *CookieStore {
	return &CookieStore{r: r, w: w, opts: opts, now: time.Now}
}

func (s *CookieStore) Load() (Record, error) {
	if s.saved != nil {
		return *s.saved, nil
	}

	cookie, err := s.r.Cookie(CookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return Record{}, ErrNoRecord
		}
		return Record{}, err
	}

	var claims consentClaims
	_, err = jwt.ParseWithClaims(cookie.Value, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.opts.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Record{}, fmt.Errorf("parse consent cookie: %w", err)
	}
	if !claims.Record.valid() {
		return Record{}, fmt.Errorf("unsupported consent record: status=%q version=%d", claims.Status, claims.Version)
	}
	return claims.Record, nil
}

func (s *CookieStore) Save(record Record) error {
	now := s.now()
	claims := consentClaims{
		Record: record,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.MaxAge)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.Secret))
	if err != nil {
		return fmt.Errorf("sign consent cookie: %w", err)
	}

	http.SetCookie(s.w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(s.opts.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: s.opts.SameSite,
	})
	s.saved = &record
	return nil
}
