package app

import (
	"chat_relay/internal/model"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

func (c *App) getHistory(user, peer string) ([]model.Envelope, error) {
	u := c.endpoint("history", user, peer)

	resp, err := c.httpClient.Get(u.String())
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get history: unexpected status %s", resp.Status)
	}

	var msgs []model.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *App) dial(user string) (*websocket.Conn, error) {
	u := c.endpoint("ws", user)
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// endpoint builds a relay URL from path segments. Segments are user ids and
// may contain reserved characters, so each one is escaped exactly once.
func (c *App) endpoint(segments ...string) url.URL {
	u := *c.baseURL
	var raw, escaped strings.Builder
	for _, seg := range segments {
		raw.WriteString("/" + seg)
		escaped.WriteString("/" + url.PathEscape(seg))
	}
	u.Path = raw.String()
	u.RawPath = escaped.String()
	return u
}
