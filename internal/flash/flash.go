// Package flash carries one-shot status messages across a redirect in a
// signed cookie.
package flash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	CookieName = "flash"

	// maxMessages bounds the cookie size when redirects pile up unread messages.
	maxMessages = 8
)

type Message struct {
	Category string `json:"c"`
	Text     string `json:"m"`
}

// Codec signs and verifies flash cookies with an HMAC-SHA256 key.
type Codec struct {
	key []byte
}

func New(secret string) *Codec {
	return &Codec{key: []byte(secret)}
}

// Add appends m to any messages already pending on r and writes the cookie.
func (c *Codec) Add(w http.ResponseWriter, r *http.Request, m Message) {
	msgs := append(c.read(r), m)
	if len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    c.encode(msgs),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Pop returns the pending messages and clears the cookie. A missing or
// tampered cookie yields no messages.
func (c *Codec) Pop(w http.ResponseWriter, r *http.Request) []Message {
	msgs := c.read(r)
	if _, err := r.Cookie(CookieName); err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return msgs
}

func (c *Codec) read(r *http.Request) []Message {
	ck, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	msgs, ok := c.decode(ck.Value)
	if !ok {
		return nil
	}
	return msgs
}

func (c *Codec) encode(msgs []Message) string {
	raw, _ := json.Marshal(msgs)
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + base64.RawURLEncoding.EncodeToString(c.sign(payload))
}

func (c *Codec) decode(value string) ([]Message, bool) {
	payload, sig, ok := strings.Cut(value, ".")
	if !ok {
		return nil, false
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(got, c.sign(payload)) {
		return nil, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, false
	}
	var msgs []Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, false
	}
	return msgs, true
}

func (c *Codec) sign(payload string) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
