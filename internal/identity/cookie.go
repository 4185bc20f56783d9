package identity

import (
	"net/http"
	"time"
)

const (
	cookiePrefix = "player_"
	cookieMaxAge = 7 * 24 * time.Hour
)

// CookieName is the name of the cookie holding the player id for a room
func CookieName(code string) string {
	return cookiePrefix + key(code)
}

// Cookies reads identities from a request and writes them to the response,
// leaving persistence across reloads to the browser.
type Cookies struct {
	r *http.Request
	w http.ResponseWriter

	// set during this request, not yet visible on r
	pending map[string]string
}

// FromRequest binds an identity store to one request/response pair
func FromRequest(w http.ResponseWriter, r *http.Request) *Cookies {
	return &Cookies{r: r, w: w, pending: make(map[string]string)}
}

func (c *Cookies) PlayerID(code string) (string, bool) {
	if id, ok := c.pending[key(code)]; ok {
		return id, true
	}
	cookie, err := c.r.Cookie(CookieName(code))
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (c *Cookies) SetPlayerID(code, playerID string) error {
	c.pending[key(code)] = playerID
	http.SetCookie(c.w, &http.Cookie{
		Name:     CookieName(code),
		Value:    playerID,
		Path:     "/",
		MaxAge:   int(cookieMaxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
