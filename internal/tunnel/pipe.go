package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/geofront/geofront-cli/internal/constants"
	"github.com/geofront/geofront-cli/internal/models"
	"github.com/geofront/geofront-cli/internal/utils"
)

// ErrPortBind means the stabilized local port could not be bound. The pipe
// never falls back to a different port; the whole point of the port map is
// that the same remote always appears on the same local port.
var ErrPortBind = errors.New("cannot bind the local tunnel port")

// DefaultDialer builds the WebSocket dialer used when PipeConfig.Dialer is
// unset, with a caller-chosen handshake timeout.
func DefaultDialer(handshakeTimeout time.Duration) *websocket.Dialer {
	return &websocket.Dialer{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: handshakeTimeout,
	}
}

// PortAllocator yields the stable local port for a remote key.
type PortAllocator interface {
	GetOrAllocate(key string) (int, error)
}

// PipeConfig carries the explicit dependencies of a Pipe.
type PipeConfig struct {
	// URL is the authorization-scoped WebSocket endpoint carrying raw SSH
	// bytes for the remote.
	URL string

	// Remote is the authorized endpoint on the far side of the tunnel.
	Remote models.Remote

	// Ports maps the remote's host:port key to its stable local port.
	Ports PortAllocator

	// Command is the local SSH client argv template; $user, $port and
	// $host placeholders are resolved against the remote's login name and
	// the bound local endpoint.
	Command []string

	// Dialer overrides the WebSocket dialer, mainly for tests.
	Dialer *websocket.Dialer

	// UserAgent, when set, is sent on the WebSocket handshake.
	UserAgent string

	Logger zerolog.Logger
}

// Pipe forwards raw bytes between one local SSH client process and one
// authorized remote tunnel. A Pipe serves exactly one invocation: one bound
// listener, at most one accepted connection, one WebSocket, one child
// process, all released together.
type Pipe struct {
	cfg PipeConfig

	mu        sync.Mutex
	state     State
	localPort int
	listener  net.Listener
	conn      net.Conn
	ws        *websocket.Conn
	cmd       *exec.Cmd

	closeOnce sync.Once
}

// NewPipe creates a Pipe; nothing is bound or spawned until Open.
func NewPipe(cfg PipeConfig) *Pipe {
	return &Pipe{cfg: cfg, state: StateIdle}
}

// State reports the pipe's current lifecycle state.
func (p *Pipe) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LocalPort reports the bound local port, zero before Open succeeds.
func (p *Pipe) LocalPort() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.localPort
}

func (p *Pipe) transition(next State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !isValidTransition(p.state, next) {
		p.cfg.Logger.Error().Str("from", string(p.state)).Str("to", string(next)).
			Msg("Invalid tunnel state transition")
		return
	}
	p.state = next
}

// Open binds the stabilized local port, connects the WebSocket tunnel, and
// spawns the local SSH client pointed at the bound port. On any failure it
// releases whatever was already acquired and lands in the terminated state;
// in particular a bind failure never spawns the subprocess.
func (p *Pipe) Open(ctx context.Context) error {
	key := p.cfg.Remote.Key()

	port, err := p.cfg.Ports.GetOrAllocate(key)
	if err != nil {
		p.transition(StateTerminated)
		return fmt.Errorf("failed to resolve a local port for %s: %w", key, err)
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", net.JoinHostPort("localhost", strconv.Itoa(port)))
	if err != nil {
		p.transition(StateTerminated)
		return fmt.Errorf("%w: port %d for remote %s: %v", ErrPortBind, port, key, err)
	}
	p.mu.Lock()
	p.listener = listener
	p.localPort = port
	p.mu.Unlock()
	p.transition(StateListening)
	p.cfg.Logger.Debug().Int("port", port).Str("remote", key).Msg("Local tunnel endpoint listening")

	dialer := p.cfg.Dialer
	if dialer == nil {
		dialer = DefaultDialer(constants.HandshakeTimeout)
	}
	header := http.Header{}
	if p.cfg.UserAgent != "" {
		header.Set("User-Agent", p.cfg.UserAgent)
	}
	ws, _, err := dialer.DialContext(ctx, p.cfg.URL, header)
	if err != nil {
		listener.Close()
		p.transition(StateTerminated)
		return fmt.Errorf("failed to connect the tunnel for %s: %w", key, err)
	}
	p.mu.Lock()
	p.ws = ws
	p.mu.Unlock()

	argv := utils.ResolveCommandTemplate(p.cfg.Command, map[string]string{
		"user": p.cfg.Remote.User,
		"host": "localhost",
		"port": strconv.Itoa(port),
	})
	cmd := exec.Command(argv[0], argv[1:]...)
	// the user talks to the SSH client directly; the tunnel is invisible
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		ws.Close()
		listener.Close()
		p.transition(StateTerminated)
		return fmt.Errorf("failed to spawn %s: %w", argv[0], err)
	}
	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()
	p.transition(StateAwaitingLocal)
	p.cfg.Logger.Debug().Str("remote", key).Int("port", port).Str("command", argv[0]).
		Msg("Tunnel open, awaiting the local SSH client")
	return nil
}

// Serve accepts the single local connection and moves bytes in both
// directions until either side ends, the context is cancelled, or a
// transport fault occurs. It only returns once both directions have
// stopped and all tunnel resources are released.
func (p *Pipe) Serve(ctx context.Context) error {
	stopAccept := context.AfterFunc(ctx, func() { p.listener.Close() })
	conn, err := p.listener.Accept()
	stopAccept()
	if err != nil {
		p.transition(StateClosing)
		p.Close()
		p.transition(StateTerminated)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to accept the local SSH client: %w", err)
	}
	// the listener is single-use per invocation
	p.listener.Close()
	if tcp, ok := conn.(*net.TCPConn); ok {
		// interactive sessions want every keystroke out immediately
		tcp.SetNoDelay(true)
	}
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
	p.transition(StatePiping)
	p.cfg.Logger.Debug().Int("port", p.LocalPort()).Msg("Local SSH client connected, piping")

	errc := make(chan error, 2)
	go p.forwardLocal(conn, errc)
	go p.forwardTunnel(conn, errc)

	stopPipe := context.AfterFunc(ctx, func() { p.Close() })
	first := <-errc
	stopPipe()

	p.transition(StateClosing)
	p.Close()
	<-errc // await the sibling direction before releasing
	p.transition(StateTerminated)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if isCleanPipeEnd(first) {
		return nil
	}
	return first
}

// forwardLocal relays the accepted socket into binary WebSocket frames. A
// zero-length read (the SSH client hung up) ends this direction.
func (p *Pipe) forwardLocal(conn net.Conn, errc chan<- error) {
	buf := make([]byte, constants.ForwardBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if werr := p.ws.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				errc <- werr
				return
			}
		}
		if err != nil {
			errc <- err
			return
		}
	}
}

// forwardTunnel relays binary WebSocket frames into the accepted socket. A
// close or error frame ends this direction.
func (p *Pipe) forwardTunnel(conn net.Conn, errc chan<- error) {
	for {
		msgType, data, err := p.ws.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if _, err := conn.Write(data); err != nil {
			errc <- err
			return
		}
	}
}

// Close releases the accepted socket, the WebSocket session, and the
// listener. Safe to call from any goroutine, any number of times.
func (p *Pipe) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		conn, ws, listener := p.conn, p.ws, p.listener
		p.mu.Unlock()

		if conn != nil {
			conn.Close()
		}
		if ws != nil {
			deadline := time.Now().Add(time.Second)
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			ws.Close()
		}
		if listener != nil {
			listener.Close()
		}
	})
}

// WaitProcess blocks until the spawned SSH client exits.
func (p *Pipe) WaitProcess() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil {
		return errors.New("no SSH client process was spawned")
	}
	return cmd.Wait()
}

// Spawned reports whether Open got as far as starting the SSH client.
func (p *Pipe) Spawned() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil
}

// isCleanPipeEnd separates ordinary end-of-stream conditions from faults.
func isCleanPipeEnd(err error) bool {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
