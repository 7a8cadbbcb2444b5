package broadcast

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/scruffychan/polly/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

var (
	// ErrNotRegistered is returned for operations on a connection the
	// broadcaster does not know about.
	ErrNotRegistered = errors.New("connection not registered")
	// ErrAlreadyJoined is returned when a joined connection sends another join.
	ErrAlreadyJoined = errors.New("connection already joined a question")
	// ErrQuestionFull is returned when a question reached its viewer limit.
	ErrQuestionFull = errors.New("question has reached its client limit")
)

type clientState int

const (
	stateUnjoined clientState = iota
	stateJoined
)

type client struct {
	writer        *clientWriter
	state         clientState
	participantID uuid.UUID
	questionID    int64
}

type questionClients map[*websocket.Conn]*client

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type registerCmd struct {
	baseBroadcasterCmd
	connection   *websocket.Conn
	errorChannel chan error
}

type joinCmd struct {
	baseBroadcasterCmd
	connection    *websocket.Conn
	participantID uuid.UUID
	questionID    int64
	errorChannel  chan error
}

type unregisterCmd struct {
	baseBroadcasterCmd
	connection *websocket.Conn
}

type publishCmd struct {
	baseBroadcasterCmd
	questionID int64
	payload    []byte
}

type sendCmd struct {
	baseBroadcasterCmd
	connection   *websocket.Conn
	payload      []byte
	errorChannel chan error
}

type clientCountCmd struct {
	baseBroadcasterCmd
	questionID   int64
	replyChannel chan int
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Broadcaster owns all WebSocket connections and the per-question fan-out
// index. All state is confined to a single goroutine driven by commands, so
// no locks are needed around the connection maps.
type Broadcaster struct {
	cmdCh                 chan broadcasterCmd
	clock                 clockwork.Clock
	clients               map[*websocket.Conn]*client
	questions             map[int64]questionClients
	onQuestionActive      func(questionID int64)
	onQuestionIdle        func(questionID int64)
	done                  chan struct{}
	stopTimeout           time.Duration
	maxClientsPerQuestion int
}

// NewBroadcaster creates and starts a broadcaster.
// onQuestionActive fires when the first viewer on this instance joins a
// question; onQuestionIdle fires when the last one leaves. Both may be nil.
// maxClientsPerQuestion bounds viewers per question (prevents resource
// exhaustion).
func NewBroadcaster(onQuestionActive, onQuestionIdle func(int64), clock clockwork.Clock, maxClientsPerQuestion int) *Broadcaster {
	b := &Broadcaster{
		cmdCh:                 make(chan broadcasterCmd, 256),
		clock:                 clock,
		clients:               make(map[*websocket.Conn]*client),
		questions:             make(map[int64]questionClients),
		onQuestionActive:      onQuestionActive,
		onQuestionIdle:        onQuestionIdle,
		done:                  make(chan struct{}),
		stopTimeout:           stopTimeout,
		maxClientsPerQuestion: maxClientsPerQuestion,
	}
	go b.run()
	return b
}

// Register adds a fresh connection in the unjoined state. It receives nothing
// until it joins a question.
func (b *Broadcaster) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	b.cmdCh <- registerCmd{connection: conn, errorChannel: errCh}
	return b.awaitError(errCh, "register")
}

// Join binds a registered connection to a question. A second join on the same
// connection returns ErrAlreadyJoined and leaves the first binding intact.
func (b *Broadcaster) Join(conn *websocket.Conn, participantID uuid.UUID, questionID int64) error {
	errCh := make(chan error, 1)
	b.cmdCh <- joinCmd{connection: conn, participantID: participantID, questionID: questionID, errorChannel: errCh}
	return b.awaitError(errCh, "join")
}

// Unregister removes a connection regardless of its state.
func (b *Broadcaster) Unregister(conn *websocket.Conn) {
	b.cmdCh <- unregisterCmd{connection: conn}
}

// Publish fans a payload out to every connection joined to the question.
// Clients whose send buffer is full are evicted rather than allowed to stall
// the rest.
func (b *Broadcaster) Publish(questionID int64, payload []byte) {
	b.cmdCh <- publishCmd{questionID: questionID, payload: payload}
}

// Send delivers a payload to a single connection, joined or not. Used for
// history replay right after a join.
func (b *Broadcaster) Send(conn *websocket.Conn, payload []byte) error {
	errCh := make(chan error, 1)
	b.cmdCh <- sendCmd{connection: conn, payload: payload, errorChannel: errCh}
	return b.awaitError(errCh, "send")
}

// ClientCount returns the number of connections joined to a question.
// Returns -1 if the command times out.
func (b *Broadcaster) ClientCount(questionID int64) int {
	replyCh := make(chan int, 1)
	b.cmdCh <- clientCountCmd{questionID: questionID, replyChannel: replyCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts the broadcaster down, closing all connections. Blocks until the
// actor goroutine has exited or the stop timeout is reached.
func (b *Broadcaster) Stop() {
	b.cmdCh <- stopCmd{}

	timeout := b.clock.NewTimer(b.stopTimeout)
	defer timeout.Stop()

	select {
	case <-b.done:
		slog.Info("Broadcaster stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Broadcaster stop timeout exceeded, forcing exit", "timeout", b.stopTimeout)
		metrics.BroadcasterStopTimeoutsTotal.Inc()
		close(b.done)
		slog.Error("Broadcaster goroutine may have leaked", "connected_clients", len(b.clients))
	}
}

func (b *Broadcaster) awaitError(errCh chan error, op string) error {
	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("%s command timed out after %v", op, commandTimeout)
	}
}

func (b *Broadcaster) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "panic", r)
			metrics.BroadcasterPanicsTotal.Inc()
			b.closeAllClients("broadcaster panic")
		}
	}()

	defer close(b.done)

	// Track command channel depth every second
	depthTicker := b.clock.NewTicker(1 * time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(b.cmdCh)
			metrics.BroadcasterCommandChannelDepth.Set(float64(depth))
			if depth > 200 { // 80% of 256
				slog.Warn("Command channel near capacity", "depth", depth, "capacity", cap(b.cmdCh))
			}

		case cmd := <-b.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				b.handleRegister(c)
			case joinCmd:
				b.handleJoin(c)
			case unregisterCmd:
				b.handleUnregister(c.connection)
			case publishCmd:
				b.handlePublish(c)
			case sendCmd:
				b.handleSend(c)
			case clientCountCmd:
				c.replyChannel <- len(b.questions[c.questionID])
			case stopCmd:
				b.handleStop()
				return
			default:
				slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	if _, exists := b.clients[c.connection]; exists {
		c.errorChannel <- nil
		return
	}

	b.clients[c.connection] = &client{
		writer: newClientWriter(c.connection, b.clock),
		state:  stateUnjoined,
	}
	metrics.BroadcasterConnectedClients.Inc()
	slog.Debug("Client registered", "total_clients", len(b.clients))
	c.errorChannel <- nil
}

func (b *Broadcaster) handleJoin(c joinCmd) {
	cl, exists := b.clients[c.connection]
	if !exists {
		c.errorChannel <- ErrNotRegistered
		return
	}
	if cl.state == stateJoined {
		c.errorChannel <- ErrAlreadyJoined
		return
	}

	members, active := b.questions[c.questionID]
	if active && len(members) >= b.maxClientsPerQuestion {
		slog.Warn("Rejecting join: max clients reached",
			"question_id", c.questionID,
			"max_clients", b.maxClientsPerQuestion,
		)
		c.errorChannel <- ErrQuestionFull
		return
	}
	if !active {
		members = make(questionClients)
		b.questions[c.questionID] = members

		// Run callback asynchronously to avoid blocking Join.
		if b.onQuestionActive != nil {
			go b.onQuestionActive(c.questionID)
		}
	}

	cl.state = stateJoined
	cl.participantID = c.participantID
	cl.questionID = c.questionID
	members[c.connection] = cl

	metrics.BroadcasterActiveQuestions.Set(float64(len(b.questions)))
	slog.Debug("Client joined question",
		"question_id", c.questionID,
		"participant_id", c.participantID.String(),
		"question_clients", len(members),
	)
	c.errorChannel <- nil
}

func (b *Broadcaster) handleUnregister(conn *websocket.Conn) {
	cl, exists := b.clients[conn]
	if !exists {
		return
	}

	cl.writer.stop()
	delete(b.clients, conn)
	metrics.BroadcasterConnectedClients.Dec()

	if cl.state != stateJoined {
		slog.Debug("Unjoined client unregistered", "total_clients", len(b.clients))
		return
	}

	members := b.questions[cl.questionID]
	delete(members, conn)
	if len(members) == 0 {
		delete(b.questions, cl.questionID)
		metrics.BroadcasterActiveQuestions.Set(float64(len(b.questions)))
		if b.onQuestionIdle != nil {
			go b.onQuestionIdle(cl.questionID)
		}
		slog.Info("Last client left question", "question_id", cl.questionID)
	} else {
		slog.Debug("Client unregistered", "question_id", cl.questionID, "remaining_clients", len(members))
	}
}

func (b *Broadcaster) handlePublish(c publishCmd) {
	members := b.questions[c.questionID]
	if len(members) == 0 {
		return
	}

	var slow []*websocket.Conn
	for conn, cl := range members {
		select {
		case cl.writer.sendChannel <- c.payload:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow client", "question_id", c.questionID)
		metrics.BroadcasterSlowClientsEvicted.Inc()
		b.handleUnregister(conn)
	}

	metrics.BroadcasterMessagesFannedOut.Add(float64(len(members) - len(slow)))
}

func (b *Broadcaster) handleSend(c sendCmd) {
	cl, exists := b.clients[c.connection]
	if !exists {
		c.errorChannel <- ErrNotRegistered
		return
	}

	select {
	case cl.writer.sendChannel <- c.payload:
		c.errorChannel <- nil
	default:
		slog.Warn("Disconnecting slow client on direct send")
		metrics.BroadcasterSlowClientsEvicted.Inc()
		b.handleUnregister(c.connection)
		c.errorChannel <- ErrNotRegistered
	}
}

func (b *Broadcaster) handleStop() {
	slog.Info("Broadcaster shutting down", "questions", len(b.questions), "total_clients", len(b.clients))
	b.closeAllClients("Server shutting down")
	slog.Info("Broadcaster shutdown complete")
}

// closeAllClients closes every connection with the given reason. Used during
// panic recovery and graceful shutdown.
func (b *Broadcaster) closeAllClients(reason string) {
	for conn, cl := range b.clients {
		cl.writer.stopGraceful(reason)
		delete(b.clients, conn)
	}
	for questionID := range b.questions {
		delete(b.questions, questionID)
		if b.onQuestionIdle != nil {
			b.onQuestionIdle(questionID)
		}
	}
	metrics.BroadcasterActiveQuestions.Set(0)
}
