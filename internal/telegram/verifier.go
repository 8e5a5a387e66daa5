// Package telegram validates Telegram WebApp initData payloads against the
// published HMAC scheme so a Mini App client can prove its identity to the
// backend.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidInitData is the single category every verification failure
// collapses to externally. Differentiating signature, format and freshness
// failures to callers would hand an attacker a signature oracle; internal
// logs keep the distinction.
var ErrInvalidInitData = errors.New("invalid telegram init data")

// WebAppUser carries the identity fields parsed from the signed `user`
// sub-object.
type WebAppUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// Pair is one decoded initData key/value entry.
type Pair struct {
	Key   string
	Value string
}

type Config struct {
	BotToken string
	// TTL bounds how old auth_date may be before the payload is stale.
	TTL time.Duration
}

// ConfigFromEnv reads the bot token and freshness window from env vars.
func ConfigFromEnv() Config {
	ttl := 24 * time.Hour
	if v := os.Getenv("TELEGRAM_AUTH_TTL_HOURS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			ttl = time.Duration(parsed) * time.Hour
		}
	}
	return Config{BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"), TTL: ttl}
}

// Verifier checks initData signatures for one bot token.
type Verifier struct {
	cfg    Config
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewVerifier(cfg Config, logger *zap.SugaredLogger) (*Verifier, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("telegram verifier requires a bot token")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Verifier{cfg: cfg, logger: logger, now: time.Now}, nil
}

// ParseInitData decodes the raw `&`-joined percent-encoded payload into an
// ordered pair list plus a lookup map. When a key repeats, the last
// occurrence wins in the map; the pair list keeps only winning entries so
// canonicalization sees the same data the map does.
func ParseInitData(raw string) ([]Pair, map[string]string, error) {
	values := map[string]string{}
	var order []string
	for _, segment := range strings.Split(raw, "&") {
		if segment == "" {
			continue
		}
		key, value, _ := strings.Cut(segment, "=")
		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			return nil, nil, err
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			return nil, nil, err
		}
		if _, seen := values[decodedKey]; !seen {
			order = append(order, decodedKey)
		}
		values[decodedKey] = decodedValue
	}
	pairs := make([]Pair, 0, len(order))
	for _, key := range order {
		pairs = append(pairs, Pair{Key: key, Value: values[key]})
	}
	return pairs, values, nil
}

// BuildDataCheckString canonicalizes the pairs for HMAC input: every entry
// except hash, sorted by key in ascending codepoint order, joined as
// key=value lines with no trailing newline. Pure so it can be checked
// against fixed vectors.
func BuildDataCheckString(pairs []Pair) string {
	filtered := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if p.Key == "hash" {
			continue
		}
		filtered = append(filtered, p)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Key < filtered[j].Key })
	lines := make([]string, 0, len(filtered))
	for _, p := range filtered {
		lines = append(lines, p.Key+"="+p.Value)
	}
	return strings.Join(lines, "\n")
}

// Verify checks the payload signature and freshness and returns the parsed
// Telegram user plus the decoded pair map.
func (v *Verifier) Verify(initData string) (*WebAppUser, map[string]string, error) {
	pairs, values, err := ParseInitData(initData)
	if err != nil {
		return nil, nil, v.reject("undecodable init data", err)
	}
	receivedHash, ok := values["hash"]
	if !ok || values["auth_date"] == "" || values["user"] == "" {
		return nil, nil, v.reject("missing hash, auth_date or user", nil)
	}

	secret := hmacSHA256([]byte("WebAppData"), []byte(v.cfg.BotToken))
	computed := hex.EncodeToString(hmacSHA256(secret, []byte(BuildDataCheckString(pairs))))
	if !hmac.Equal([]byte(computed), []byte(strings.ToLower(receivedHash))) {
		return nil, nil, v.reject("signature mismatch", nil)
	}

	authDate, err := strconv.ParseInt(values["auth_date"], 10, 64)
	if err != nil {
		return nil, nil, v.reject("unparseable auth_date", err)
	}
	if v.now().Unix()-authDate > int64(v.cfg.TTL.Seconds()) {
		return nil, nil, v.reject("stale auth_date", nil)
	}

	var user WebAppUser
	if err := json.Unmarshal([]byte(values["user"]), &user); err != nil {
		return nil, nil, v.reject("unparseable user object", err)
	}
	if user.ID == 0 {
		return nil, nil, v.reject("user object without id", nil)
	}
	return &user, values, nil
}

func (v *Verifier) reject(reason string, err error) error {
	if v.logger != nil {
		v.logger.Debugw("telegram init data rejected", "reason", reason, "err", err)
	}
	return ErrInvalidInitData
}

func hmacSHA256(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}
