package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

var ErrInvalidCookieSignature = errors.New("invalid cookie signature")

// SignCookieValue appends an HMAC of value so tampered cookies can be rejected
// without touching the session store.
func SignCookieValue(secret, value string) string {
	return value + "." + base64.RawURLEncoding.EncodeToString(cookieMAC(secret, value))
}

func VerifyCookieValue(secret, signed string) (string, error) {
	idx := strings.LastIndex(signed, ".")
	if idx <= 0 || idx == len(signed)-1 {
		return "", ErrInvalidCookieSignature
	}

	value, sig := signed[:idx], signed[idx+1:]
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", ErrInvalidCookieSignature
	}
	if !hmac.Equal(got, cookieMAC(secret, value)) {
		return "", ErrInvalidCookieSignature
	}
	return value, nil
}

func cookieMAC(secret, value string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(value))
	return mac.Sum(nil)
}
