package agent

import (
	"context"
	"log/slog"

	"github.com/bitriver/fleet-agent/internal/wsclient"
)

// Session is the WebSocket client connection to the controller (CS). It
// registers on connect, forwards inbound text frames to the router, and
// drains the outbound queue onto the wire. Reads and writes run on
// independent goroutines against the same connection -- the same shape the
// pack's own chat gateway uses for its read/write/heartbeat loops -- rather
// than a single hand-rolled event-pump tick, since wsclient.Conn already
// serializes concurrent writers internally.
type Session struct {
	conn   *wsclient.Conn
	state  *State
	router *Router
	logger *slog.Logger
}

// Connect dials the controller, installs itself as the state's active
// session, and emits the initial register message. The caller must call Run
// to service the connection.
func Connect(ctx context.Context, state *State, router *Router) (*Session, error) {
	url := state.Config.ControllerWSURL + "/agent?token=" + PercentEncodeToken(state.Config.AgentToken)
	conn, err := wsclient.Dial(ctx, url, nil, nil)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		conn:   conn,
		state:  state,
		router: router,
		logger: state.Logger.With("component", "session"),
	}
	state.setSession(sess)
	state.Metrics.SessionConnected()
	sess.register()
	return sess, nil
}

func (s *Session) register() {
	text, err := encode(registerMessage{
		Type: "register",
		Payload: registerPayload{
			ID:          s.state.Config.AgentID,
			Name:        s.state.Config.AgentID,
			Concurrency: s.state.Config.Concurrency,
			Encoders:    s.state.Encoders,
			Token:       s.state.Config.AgentToken,
		},
	})
	if err != nil {
		s.logger.Error("failed to encode register message", "error", err)
		return
	}
	s.state.Outbound.Enqueue(text)
}

// Run services the connection until a transport error or ctx cancellation,
// at which point it marks the agent for shutdown and closes the connection.
// It returns once both the read and write loops have stopped.
func (s *Session) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.writeLoop(ctx)
		close(done)
	}()

	// ReadMessage only notices cancellation through the read deadline it
	// derives from ctx, so a ctx without a deadline (e.g. cancelled by a
	// shutdown signal) would otherwise leave readLoop blocked on the socket.
	// Closing the connection unblocks it immediately.
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	s.readLoop(ctx)

	s.state.SetShouldExit()
	s.conn.Close()
	<-done
	s.state.Metrics.SessionClosed()
	s.state.setSession(nil)
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		msg, err := s.conn.ReadMessage(ctx)
		if err != nil {
			s.logger.Info("session closed", "error", err)
			return
		}
		s.router.Dispatch(ctx, msg)
	}
}

func (s *Session) writeLoop(ctx context.Context) {
	notify := s.state.Outbound.Notify()
	for {
		select {
		case <-ctx.Done():
			return
		case <-notify:
			for {
				text, ok := s.state.Outbound.Dequeue()
				if !ok {
					break
				}
				if err := s.conn.WriteText([]byte(text)); err != nil {
					s.logger.Warn("write failed, terminating session", "error", err)
					return
				}
			}
		}
	}
}
