package connection

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newConnPair dials a real websocket against an httptest server and returns
// both ends.
func newConnPair(t *testing.T) (client, server *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial(strings.Replace(srv.URL, "http", "ws", 1), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	server = <-serverConns
	t.Cleanup(func() { server.Close() })

	return client, server
}

func TestConnSerializesConcurrentWriters(t *testing.T) {
	client, server := newConnPair(t)
	wrapped := WrapConn(server)

	const writers = 16
	const framesPerWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < framesPerWriter; i++ {
				assert.NoError(t, wrapped.WriteJSON(map[string]int{"writer": w, "frame": i}))
			}
		}(w)
	}

	// every frame arrives intact
	for i := 0; i < writers*framesPerWriter; i++ {
		client.SetReadDeadline(time.Now().Add(2 * time.Second))

		var frame map[string]int
		require.NoError(t, client.ReadJSON(&frame))
		assert.Contains(t, frame, "writer")
		assert.Contains(t, frame, "frame")
	}

	wg.Wait()
}

func TestConnWriteAfterClose(t *testing.T) {
	_, server := newConnPair(t)
	wrapped := WrapConn(server)

	require.NoError(t, wrapped.Close())
	assert.Error(t, wrapped.WriteJSON(map[string]string{"type": "PING"}))
}
