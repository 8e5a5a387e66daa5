package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

const testBotToken = "BOT123"

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(Config{BotToken: testBotToken, TTL: 24 * time.Hour}, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

// signInitData assembles a raw initData payload for the given decoded
// fields, signing them the way the Telegram client does.
func signInitData(botToken string, fields map[string]string, order []string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}
	secretMac := hmac.New(sha256.New, []byte("WebAppData"))
	secretMac.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secretMac.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	hash := hex.EncodeToString(mac.Sum(nil))

	segments := make([]string, 0, len(order)+1)
	for _, k := range order {
		segments = append(segments, url.QueryEscape(k)+"="+url.QueryEscape(fields[k]))
	}
	segments = append(segments, "hash="+hash)
	return strings.Join(segments, "&")
}

func testFields(authDate time.Time) map[string]string {
	return map[string]string{
		"auth_date": fmt.Sprintf("%d", authDate.Unix()),
		"query_id":  "AAH9mRs3AAAAAP2ZGzdVL00J",
		"user":      `{"id":7,"first_name":"Eco","last_name":"Share","username":"ecoshare"}`,
	}
}

func TestVerifyAcceptsSignedPayload(t *testing.T) {
	v := newTestVerifier(t)
	fields := testFields(time.Now())
	raw := signInitData(testBotToken, fields, []string{"query_id", "user", "auth_date"})

	user, values, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user.ID != 7 || user.FirstName != "Eco" || user.LastName != "Share" || user.Username != "ecoshare" {
		t.Errorf("user = %+v", user)
	}
	if values["query_id"] != fields["query_id"] {
		t.Errorf("decoded query_id = %q", values["query_id"])
	}
}

func TestVerifyAcceptsPermutedPairOrder(t *testing.T) {
	v := newTestVerifier(t)
	fields := testFields(time.Now())

	orders := [][]string{
		{"auth_date", "query_id", "user"},
		{"user", "auth_date", "query_id"},
		{"query_id", "auth_date", "user"},
	}
	for _, order := range orders {
		raw := signInitData(testBotToken, fields, order)
		if _, _, err := v.Verify(raw); err != nil {
			t.Errorf("order %v rejected: %v", order, err)
		}
	}
}

func TestVerifyRejectsFlippedHashDigit(t *testing.T) {
	v := newTestVerifier(t)
	raw := signInitData(testBotToken, testFields(time.Now()), []string{"query_id", "user", "auth_date"})

	idx := strings.LastIndex(raw, "hash=") + len("hash=")
	flipped := byte('0')
	if raw[idx] == '0' {
		flipped = '1'
	}
	tampered := raw[:idx] + string(flipped) + raw[idx+1:]

	if _, _, err := v.Verify(tampered); !errors.Is(err, ErrInvalidInitData) {
		t.Fatalf("err = %v, want ErrInvalidInitData", err)
	}
}

func TestVerifyRejectsStaleAuthDate(t *testing.T) {
	v := newTestVerifier(t)
	raw := signInitData(testBotToken, testFields(time.Now().Add(-25*time.Hour)), []string{"query_id", "user", "auth_date"})

	if _, _, err := v.Verify(raw); !errors.Is(err, ErrInvalidInitData) {
		t.Fatalf("err = %v, want ErrInvalidInitData", err)
	}
}

func TestVerifyRejectsMissingFields(t *testing.T) {
	v := newTestVerifier(t)
	for _, raw := range []string{
		"",
		"hash=deadbeef",
		"auth_date=123&user=%7B%22id%22%3A7%7D", // no hash
	} {
		if _, _, err := v.Verify(raw); !errors.Is(err, ErrInvalidInitData) {
			t.Errorf("Verify(%q) err = %v, want ErrInvalidInitData", raw, err)
		}
	}
}

func TestVerifyAcceptsUppercaseHash(t *testing.T) {
	v := newTestVerifier(t)
	raw := signInitData(testBotToken, testFields(time.Now()), []string{"query_id", "user", "auth_date"})

	idx := strings.LastIndex(raw, "hash=") + len("hash=")
	upper := raw[:idx] + strings.ToUpper(raw[idx:])
	if _, _, err := v.Verify(upper); err != nil {
		t.Fatalf("uppercase hash rejected: %v", err)
	}
}

func TestBuildDataCheckString(t *testing.T) {
	pairs := []Pair{
		{Key: "user", Value: `{"id":1}`},
		{Key: "hash", Value: "ffff"},
		{Key: "auth_date", Value: "100"},
		{Key: "query_id", Value: "q"},
	}
	want := "auth_date=100\nquery_id=q\nuser={\"id\":1}"
	if got := BuildDataCheckString(pairs); got != want {
		t.Errorf("data check string = %q, want %q", got, want)
	}
}

func TestParseInitDataLastDuplicateWins(t *testing.T) {
	_, values, err := ParseInitData("a=1&a=2&b=3")
	if err != nil {
		t.Fatalf("ParseInitData: %v", err)
	}
	if values["a"] != "2" {
		t.Errorf("a = %q, want 2", values["a"])
	}
}
