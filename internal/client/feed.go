package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"contactdesk/internal/domain/contact"
)

// Subscribe streams contact change events to fn until ctx is cancelled or
// the connection drops.
func (c *Client) Subscribe(ctx context.Context, fn func(contact.ChangeEvent)) error {
	u, err := url.Parse(c.baseURL + "/api/v1/contacts/ws")
	if err != nil {
		return fmt.Errorf("parse feed url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial change feed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	})
	defer stop()

	for {
		var event contact.ChangeEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read change feed: %w", err)
		}
		fn(event)
	}
}
