// Package flash carries one-shot user messages across a redirect in a
// signed cookie.
package flash

import (
	"net/http"

	"github.com/gorilla/securecookie"
)

const CookieName = "flash"

// maxAge bounds how long an unread message stays valid.
const maxAge = 10 * 60

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

func Success(text string) *Message {
	return &Message{Level: LevelSuccess, Text: text}
}

func Error(text string) *Message {
	return &Message{Level: LevelError, Text: text}
}

// Store reads and writes the flash cookie. Values are HMAC-signed so a
// client cannot inject messages.
type Store struct {
	codec  *securecookie.SecureCookie
	secure bool
}

func NewStore(hashKey []byte, secure bool) *Store {
	codec := securecookie.New(hashKey, nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(maxAge)
	return &Store{codec: codec, secure: secure}
}

// Set stores msgs for the next request. Existing unread messages are replaced.
func (s *Store) Set(w http.ResponseWriter, msgs ...*Message) {
	list := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m != nil && m.Text != "" {
			list = append(list, *m)
		}
	}
	if len(list) == 0 {
		return
	}

	value, err := s.codec.Encode(CookieName, list)
	if err != nil {
		return
	}

	http.SetCookie(w, s.cookie(value, 0))
}

// Pop returns the pending messages and clears the cookie.
// A tampered or malformed cookie is cleared and yields no messages.
func (s *Store) Pop(w http.ResponseWriter, r *http.Request) []Message {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}

	http.SetCookie(w, s.cookie("", -1))

	var list []Message
	if err := s.codec.Decode(CookieName, c.Value, &list); err != nil {
		return nil
	}
	return list
}

func (s *Store) cookie(value string, age int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   age,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
