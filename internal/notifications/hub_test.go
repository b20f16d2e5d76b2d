package notifications

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialTestConn hands back both ends of a real websocket connection.
func dialTestConn(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	serverSide := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverSide <- conn
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = clientConn.Close() })
	return <-serverSide, clientConn
}

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	server, _ := dialTestConn(t)

	hub.Register("user-1", server)
	assert.Equal(t, 1, hub.ConnectionCount())

	hub.Unregister("user-1", server)
	assert.Zero(t, hub.ConnectionCount())

	// Unregistering twice is harmless.
	hub.Unregister("user-1", server)
	assert.Zero(t, hub.ConnectionCount())
}

func TestNotifySyncNeededReachesClient(t *testing.T) {
	hub := NewHub()
	server, clientConn := dialTestConn(t)
	hub.Register("user-1", server)
	defer hub.Unregister("user-1", server)

	hub.NotifySyncNeeded("user-1")

	var msg Message
	require.NoError(t, clientConn.ReadJSON(&msg))
	assert.Equal(t, "syncVault", msg.Type)
}

func TestConcurrentNotifyAndPing(t *testing.T) {
	hub := NewHub()
	server, clientConn := dialTestConn(t)
	cl := hub.Register("user-1", server)
	defer hub.Unregister("user-1", server)

	// Drain everything on the client side so writes never block.
	go func() {
		for {
			if _, _, err := clientConn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Notifications and pings target the same connection from different
	// goroutines; the per-connection mutex must serialize them.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				hub.NotifySyncNeeded("user-1")
				assert.NoError(t, cl.writeControl(websocket.PingMessage, nil))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, hub.ConnectionCount())
}
