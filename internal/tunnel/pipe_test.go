package tunnel

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geofront/geofront-cli/internal/models"
)

var testRemote = models.Remote{User: "ubuntu", Host: "web-1.internal", Port: 22}

// echoPeer is a WebSocket server that mirrors every frame back, standing in
// for the remote end of the tunnel.
func echoPeer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			msgType, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(msgType, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// closingPeer accepts the tunnel and closes it cleanly after the first frame.
func closingPeer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
		deadline := time.Now().Add(time.Second)
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// staticAllocator hands out one predetermined port, standing in for the
// persisted port map.
type staticAllocator struct{ port int }

func (a staticAllocator) GetOrAllocate(string) (int, error) { return a.port, nil }

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func dialLocal(t *testing.T, port int) net.Conn {
	t.Helper()
	var conn net.Conn
	require.Eventually(t, func() bool {
		var err error
		conn, err = net.Dial("tcp", fmt.Sprintf("localhost:%d", port))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestPipe_RoundTrip(t *testing.T) {
	port := freePort(t)
	pipe := NewPipe(PipeConfig{
		URL:     echoPeer(t),
		Remote:  testRemote,
		Ports:   staticAllocator{port},
		Command: []string{"sleep", "2"},
		Logger:  zerolog.Nop(),
	})

	require.NoError(t, pipe.Open(context.Background()))
	assert.Equal(t, StateAwaitingLocal, pipe.State())
	assert.Equal(t, port, pipe.LocalPort())
	go pipe.WaitProcess() // reap the stand-in child

	serveDone := make(chan error, 1)
	go func() { serveDone <- pipe.Serve(context.Background()) }()

	// play the part of the spawned SSH client
	conn := dialLocal(t, port)
	defer conn.Close()

	payload := []byte("SSH-2.0-OpenSSH_9.6\r\nkexinit and friends")
	_, err := conn.Write(payload)
	require.NoError(t, err)

	got := make([]byte, len(payload))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(conn, got)
	require.NoError(t, err)
	assert.Equal(t, payload, got, "bytes must come back unmodified and in order")

	// a second exchange proves ordering is preserved across frames
	second := []byte("more channel data")
	_, err = conn.Write(second)
	require.NoError(t, err)
	got = make([]byte, len(second))
	_, err = io.ReadFull(conn, got)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	// the SSH client hanging up drains the pipe to terminated
	conn.Close()
	select {
	case err := <-serveDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipe did not terminate after the local side closed")
	}
	assert.Equal(t, StateTerminated, pipe.State())
}

func TestPipe_TunnelCloseEndsServe(t *testing.T) {
	port := freePort(t)
	pipe := NewPipe(PipeConfig{
		URL:     closingPeer(t),
		Remote:  testRemote,
		Ports:   staticAllocator{port},
		Command: []string{"sleep", "2"},
		Logger:  zerolog.Nop(),
	})

	require.NoError(t, pipe.Open(context.Background()))
	go pipe.WaitProcess()

	serveDone := make(chan error, 1)
	go func() { serveDone <- pipe.Serve(context.Background()) }()

	conn := dialLocal(t, port)
	defer conn.Close()
	_, err := conn.Write([]byte("trigger"))
	require.NoError(t, err)

	select {
	case err := <-serveDone:
		assert.NoError(t, err, "a clean close frame is not a fault")
	case <-time.After(5 * time.Second):
		t.Fatal("pipe did not terminate after the tunnel closed")
	}
	assert.Equal(t, StateTerminated, pipe.State())

	// the accepted socket is observably closed afterwards
	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Error(t, err)
}

func TestPipe_BindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer taken.Close()
	port := taken.Addr().(*net.TCPAddr).Port

	pipe := NewPipe(PipeConfig{
		URL:     echoPeer(t),
		Remote:  testRemote,
		Ports:   staticAllocator{port},
		Command: []string{"sleep", "2"},
		Logger:  zerolog.Nop(),
	})

	err = pipe.Open(context.Background())
	require.ErrorIs(t, err, ErrPortBind)
	assert.Equal(t, StateTerminated, pipe.State())
	assert.False(t, pipe.Spawned(), "no subprocess may be spawned after a bind failure")
}

func TestPipe_CancelledWhileAwaitingLocal(t *testing.T) {
	port := freePort(t)
	pipe := NewPipe(PipeConfig{
		URL:     echoPeer(t),
		Remote:  testRemote,
		Ports:   staticAllocator{port},
		Command: []string{"sleep", "2"},
		Logger:  zerolog.Nop(),
	})

	require.NoError(t, pipe.Open(context.Background()))
	go pipe.WaitProcess()

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- pipe.Serve(ctx) }()
	cancel()

	select {
	case err := <-serveDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("pipe did not react to cancellation")
	}
	assert.Equal(t, StateTerminated, pipe.State())
}

func TestStateMachine_RejectsInvalidMoves(t *testing.T) {
	assert.True(t, isValidTransition(StateIdle, StateListening))
	assert.True(t, isValidTransition(StateIdle, StateTerminated))
	assert.True(t, isValidTransition(StatePiping, StateClosing))
	assert.False(t, isValidTransition(StatePiping, StateTerminated))
	assert.False(t, isValidTransition(StateTerminated, StateListening))
	assert.False(t, isValidTransition(StateIdle, StatePiping))
}
