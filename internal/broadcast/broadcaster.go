package broadcast

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/BNLNPPS/swf-monitor/internal/domain"
	"github.com/BNLNPPS/swf-monitor/internal/metrics"
)

const (
	commandTimeout  = 5 * time.Second // actor command timeout
	stopTimeout     = 10 * time.Second
	cmdChannelDepth = 256
)

// ErrMaxClients is returned by Register when the per-process client
// bound is reached.
var ErrMaxClients = errors.New("max clients per process reached")

// ErrStopped is returned by Register after the broadcaster has shut down.
var ErrStopped = errors.New("broadcaster stopped")

// Client is one registered SSE stream. The broadcaster enqueues onto
// its bounded queue; the SSE handler is the only reader.
type Client struct {
	ID        uuid.UUID
	Filter    domain.ClientFilter
	CreatedAt time.Time
	queue     chan domain.Event
}

// Events returns the client's receive side of the bounded queue. The
// channel is closed when the client is unregistered or the broadcaster
// stops.
func (c *Client) Events() <-chan domain.Event {
	return c.queue
}

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type registerCmd struct {
	baseBroadcasterCmd
	filter       domain.ClientFilter
	replyChannel chan registerReply
}

type registerReply struct {
	client *Client
	err    error
}

type unregisterCmd struct {
	baseBroadcasterCmd
	clientID uuid.UUID
}

type broadcastCmd struct {
	baseBroadcasterCmd
	event domain.Event
}

type statusCmd struct {
	baseBroadcasterCmd
	replyChannel chan Status
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Status is a snapshot of the local client registry, reported by the
// stream status endpoint. It covers this process only.
type Status struct {
	ConnectedClients int                            `json:"connected_clients"`
	ClientIDs        []string                       `json:"client_ids"`
	ClientFilters    map[string]domain.ClientFilter `json:"client_filters"`
}

// Broadcaster routes each event to the locally connected clients whose
// filter matches, without ever blocking on a slow consumer. A single
// goroutine owns the registry; all mutation goes through the command
// channel, so registration, removal and broadcast never race.
type Broadcaster struct {
	cmdCh       chan broadcasterCmd
	clock       clockwork.Clock
	clients     map[uuid.UUID]*Client
	queueSize   int
	maxClients  int
	done        chan struct{}
	stopTimeout time.Duration
}

// NewBroadcaster creates a broadcaster and starts its actor goroutine.
// queueSize bounds each client's event queue (overflow evicts the
// oldest entry). maxClients bounds clients on this process; zero means
// unbounded.
func NewBroadcaster(clock clockwork.Clock, queueSize, maxClients int) *Broadcaster {
	b := &Broadcaster{
		cmdCh:       make(chan broadcasterCmd, cmdChannelDepth),
		clock:       clock,
		clients:     make(map[uuid.UUID]*Client),
		queueSize:   queueSize,
		maxClients:  maxClients,
		done:        make(chan struct{}),
		stopTimeout: stopTimeout,
	}
	go b.run()
	return b
}

// Register allocates a new client with the given filter and a fresh id.
func (b *Broadcaster) Register(filter domain.ClientFilter) (*Client, error) {
	replyCh := make(chan registerReply, 1)
	if !b.send(registerCmd{filter: filter, replyChannel: replyCh}) {
		return nil, ErrStopped
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply.client, reply.err
	case <-b.done:
		return nil, ErrStopped
	case <-timer.Chan():
		return nil, fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a client. Idempotent: removing an unknown or
// already-removed id is a no-op.
func (b *Broadcaster) Unregister(clientID uuid.UUID) {
	b.send(unregisterCmd{clientID: clientID})
}

// Broadcast hands an event to the actor for fan-out. Never blocks on a
// slow client; per-client overflow is handled by drop-oldest eviction.
func (b *Broadcaster) Broadcast(e domain.Event) {
	b.send(broadcastCmd{event: e})
}

// Status returns a snapshot of the local registry. Returns a zero
// status if the broadcaster is stopped or stuck.
func (b *Broadcaster) Status() Status {
	replyCh := make(chan Status, 1)
	if !b.send(statusCmd{replyChannel: replyCh}) {
		return Status{ClientIDs: []string{}, ClientFilters: map[string]domain.ClientFilter{}}
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case status := <-replyCh:
		return status
	case <-b.done:
		return Status{ClientIDs: []string{}, ClientFilters: map[string]domain.ClientFilter{}}
	case <-timer.Chan():
		slog.Warn("Status command timed out", "timeout", commandTimeout)
		return Status{ClientIDs: []string{}, ClientFilters: map[string]domain.ClientFilter{}}
	}
}

// Stop shuts the broadcaster down, closing every client queue. Blocks
// until the actor goroutine has exited or the stop timeout is reached.
func (b *Broadcaster) Stop() {
	if !b.send(stopCmd{}) {
		return
	}

	timeout := b.clock.NewTimer(b.stopTimeout)
	defer timeout.Stop()

	select {
	case <-b.done:
		slog.Info("Broadcaster stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Broadcaster stop timeout exceeded", "timeout", b.stopTimeout)
		metrics.BroadcasterStopTimeoutsTotal.Inc()
	}
}

// send delivers a command unless the actor has already exited.
func (b *Broadcaster) send(cmd broadcasterCmd) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.cmdCh <- cmd:
		return true
	case <-b.done:
		return false
	}
}

func (b *Broadcaster) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "panic", r)
			metrics.BroadcasterPanicsTotal.Inc()
			b.closeAllClients()
			close(b.done)
		}
	}()

	// Track command channel depth every second
	depthTicker := b.clock.NewTicker(1 * time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(b.cmdCh)
			metrics.BroadcasterCommandChannelDepth.Set(float64(depth))

			if depth > cmdChannelDepth*4/5 {
				slog.Warn("Command channel near capacity",
					"depth", depth,
					"capacity", cap(b.cmdCh),
				)
			}

		case cmd := <-b.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				b.handleRegister(c)
			case unregisterCmd:
				b.handleUnregister(c.clientID)
			case broadcastCmd:
				b.handleBroadcast(c.event)
			case statusCmd:
				c.replyChannel <- b.snapshotStatus()
			case stopCmd:
				b.handleStop()
				close(b.done)
				return
			default:
				slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	if b.maxClients > 0 && len(b.clients) >= b.maxClients {
		slog.Warn("Rejecting client: max clients reached", "max_clients", b.maxClients)
		c.replyChannel <- registerReply{err: ErrMaxClients}
		return
	}

	client := &Client{
		ID:        uuid.New(),
		Filter:    c.filter,
		CreatedAt: b.clock.Now(),
		queue:     make(chan domain.Event, b.queueSize),
	}
	b.clients[client.ID] = client

	metrics.BroadcasterConnectedClients.Set(float64(len(b.clients)))

	slog.Debug("Client registered", "client_id", client.ID.String(), "total_clients", len(b.clients))
	c.replyChannel <- registerReply{client: client}
}

func (b *Broadcaster) handleUnregister(clientID uuid.UUID) {
	client, exists := b.clients[clientID]
	if !exists {
		return
	}

	delete(b.clients, clientID)
	close(client.queue)

	metrics.BroadcasterConnectedClients.Set(float64(len(b.clients)))

	slog.Debug("Client unregistered", "client_id", clientID.String(), "remaining_clients", len(b.clients))
}

func (b *Broadcaster) handleBroadcast(e domain.Event) {
	for _, client := range b.clients {
		if !client.Filter.Matches(e) {
			continue
		}
		b.enqueue(client, e)
		metrics.BroadcasterDeliveriesTotal.Inc()
	}
}

// enqueue admits the event onto the client's queue, evicting the oldest
// queued entry first when the queue is at capacity. The new event is
// always admitted; the actor is the only sender, so a freed slot cannot
// be stolen by another writer.
func (b *Broadcaster) enqueue(client *Client, e domain.Event) {
	select {
	case client.queue <- e:
		return
	default:
	}

	select {
	case <-client.queue:
		metrics.BroadcasterEvictionsTotal.Inc()
	default:
		// Reader drained the queue between the two selects.
	}

	select {
	case client.queue <- e:
	default:
	}
}

func (b *Broadcaster) snapshotStatus() Status {
	status := Status{
		ConnectedClients: len(b.clients),
		ClientIDs:        make([]string, 0, len(b.clients)),
		ClientFilters:    make(map[string]domain.ClientFilter, len(b.clients)),
	}
	for id, client := range b.clients {
		status.ClientIDs = append(status.ClientIDs, id.String())
		status.ClientFilters[id.String()] = client.Filter
	}
	return status
}

func (b *Broadcaster) handleStop() {
	slog.Info("Broadcaster shutting down", "clients", len(b.clients))
	b.closeAllClients()
}

func (b *Broadcaster) closeAllClients() {
	for id, client := range b.clients {
		close(client.queue)
		delete(b.clients, id)
	}
	metrics.BroadcasterConnectedClients.Set(0)
}
