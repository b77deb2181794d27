// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

const (
	defaultOrigin       = "http://localhost/"
	defaultWriteTimeout = 10 * time.Second
)

// WebsocketDialer dials a JSON framed websocket
type WebsocketDialer struct {
	Header       http.Header
	URL          string
	Origin       string
	Token        string
	WriteTimeout time.Duration
}

func (d *WebsocketDialer) Dial(ctx context.Context) (Conn, error) {
	origin := d.Origin
	if origin == "" {
		origin = defaultOrigin
	}
	cfg, err := websocket.NewConfig(d.URL, origin)
	if err != nil {
		return nil, fmt.Errorf("websocket config: %w", err)
	}
	for k, v := range d.Header {
		cfg.Header[k] = v
	}
	if d.Token != "" {
		cfg.Header.Set("Authorization", "Bearer "+d.Token)
	}
	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", d.URL, err)
	}
	timeout := d.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	return &wsConn{ws: ws, writeTimeout: timeout}, nil
}

type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func (c *wsConn) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return websocket.JSON.Send(c.ws, msg)
}

func (c *wsConn) Receive(msg *Message) error {
	return websocket.JSON.Receive(c.ws, msg)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
