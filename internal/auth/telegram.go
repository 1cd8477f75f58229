// Package auth validates Telegram Mini App init data. The scheme is the one
// Telegram documents: a secret derived from the bot token signs the sorted
// key=value pairs, and the client-supplied hash must match.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingHash = errors.New("auth: init data has no hash")
	ErrBadHash     = errors.New("auth: init data hash mismatch")
	ErrExpired     = errors.New("auth: init data too old")
	ErrNoUser      = errors.New("auth: init data has no user")
)

// TelegramUser is the user object embedded in validated init data.
type TelegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Validator checks init data signatures for one bot.
type Validator struct {
	secret []byte
	maxAge time.Duration
}

// NewValidator derives the signing secret from the bot token. A zero maxAge
// disables the freshness check.
func NewValidator(botToken string, maxAge time.Duration) *Validator {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return &Validator{secret: mac.Sum(nil), maxAge: maxAge}
}

// Validate verifies the init data string and returns its user.
func (v *Validator) Validate(initData string, now time.Time) (*TelegramUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, err
	}
	wantHash := values.Get("hash")
	if wantHash == "" {
		return nil, ErrMissingHash
	}
	values.Del("hash")

	pairs := make([]string, 0, len(values))
	for k := range values {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	sort.Strings(pairs)

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strings.Join(pairs, "\n")))
	if !hmac.Equal([]byte(hex.EncodeToString(mac.Sum(nil))), []byte(wantHash)) {
		return nil, ErrBadHash
	}

	if v.maxAge > 0 {
		authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil || now.Sub(time.Unix(authDate, 0)) > v.maxAge {
			return nil, ErrExpired
		}
	}

	raw := values.Get("user")
	if raw == "" {
		return nil, ErrNoUser
	}
	var user TelegramUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, err
	}
	return &user, nil
}
