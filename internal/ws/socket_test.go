package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer upgrades and echoes every text frame back.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDial(t *testing.T) {
	t.Run("rejects malformed address", func(t *testing.T) {
		d := NewDialer()
		for _, addr := range []string{"", "http://example.com", "not a url", "ws://"} {
			_, err := d.Dial(context.Background(), addr, nil)
			assert.ErrorIs(t, err, ErrInvalidAddress, "addr=%q", addr)
			assert.True(t, IsFatal(err))
		}
	})

	t.Run("connects and round-trips a frame", func(t *testing.T) {
		srv := echoServer(t)
		defer srv.Close()

		d := NewDialer()
		sock, err := d.Dial(context.Background(), wsURL(srv), nil)
		require.NoError(t, err)
		defer sock.Close()

		require.NoError(t, sock.WriteText([]byte(`{"type":"ping"}`)))

		mt, data, err := sock.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, mt)
		assert.Equal(t, `{"type":"ping"}`, string(data))
	})

	t.Run("unreachable server is not fatal", func(t *testing.T) {
		d := NewDialer()
		ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		defer cancel()

		_, err := d.Dial(ctx, "ws://127.0.0.1:1", nil)
		require.Error(t, err)
		assert.False(t, IsFatal(err))
	})

	t.Run("passes handshake headers", func(t *testing.T) {
		var gotAuth string
		upgrader := websocket.Upgrader{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			conn.Close()
		}))
		defer srv.Close()

		d := NewDialer()
		header := http.Header{}
		header.Set("Authorization", "Bearer token-123")
		sock, err := d.Dial(context.Background(), wsURL(srv), header)
		require.NoError(t, err)
		sock.Close()

		assert.Equal(t, "Bearer token-123", gotAuth)
	})
}

func TestSocketClose(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	d := NewDialer()
	sock, err := d.Dial(context.Background(), wsURL(srv), nil)
	require.NoError(t, err)

	t.Run("close is idempotent", func(t *testing.T) {
		assert.NoError(t, sock.Close())
		assert.NoError(t, sock.Close())
	})

	t.Run("write after close fails", func(t *testing.T) {
		err := sock.WriteText([]byte("late"))
		assert.ErrorIs(t, err, ErrSocketClosed)
	})

	t.Run("dead connection write wraps the write sentinel", func(t *testing.T) {
		d := NewDialer()
		dead, err := d.Dial(context.Background(), wsURL(srv), nil)
		require.NoError(t, err)

		// kill the raw connection without marking the socket closed
		require.NoError(t, dead.conn.Close())
		assert.ErrorIs(t, dead.WriteText([]byte("x")), ErrWriteFailed)
	})

	t.Run("read after close reports connection error", func(t *testing.T) {
		_, _, err := sock.ReadFrame()
		require.Error(t, err)
		var ce *ConnectionError
		assert.ErrorAs(t, err, &ce)
		assert.Equal(t, "read", ce.Op)
	})
}
