package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const botToken = "12345:test-token"

func signInitData(t *testing.T, values url.Values) string {
	t.Helper()
	pairs := make([]string, 0, len(values))
	for k := range values {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	sort.Strings(pairs)

	keyMAC := hmac.New(sha256.New, []byte("WebAppData"))
	keyMAC.Write([]byte(botToken))
	mac := hmac.New(sha256.New, keyMAC.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))

	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func TestValidateAccepts(t *testing.T) {
	now := time.Now()
	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(now.Unix(), 10))
	values.Set("query_id", "AAE")
	values.Set("user", `{"id":42,"first_name":"Alice","username":"alice"}`)

	v := NewValidator(botToken, time.Hour)
	user, err := v.Validate(signInitData(t, values), now)
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "alice", user.Username)
}

func TestValidateRejectsTamper(t *testing.T) {
	now := time.Now()
	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(now.Unix(), 10))
	values.Set("user", `{"id":42,"first_name":"Alice"}`)
	data := signInitData(t, values)

	tampered := strings.Replace(data, "42", "43", 1)
	v := NewValidator(botToken, 0)
	_, err := v.Validate(tampered, now)
	assert.ErrorIs(t, err, ErrBadHash)
}

func TestValidateRejectsMissingHash(t *testing.T) {
	v := NewValidator(botToken, 0)
	_, err := v.Validate("user=%7B%22id%22%3A1%7D", time.Now())
	assert.ErrorIs(t, err, ErrMissingHash)
}

func TestValidateRejectsStale(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(issued.Unix(), 10))
	values.Set("user", `{"id":42,"first_name":"Alice"}`)
	data := signInitData(t, values)

	v := NewValidator(botToken, time.Hour)
	_, err := v.Validate(data, time.Now())
	assert.ErrorIs(t, err, ErrExpired)
}
