package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"transport-connect/internal/domain/notification"
	"transport-connect/internal/domain/request"
	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/logger"
	"transport-connect/internal/general/memstore"
	"transport-connect/internal/general/realtime"

	"github.com/stretchr/testify/require"
)

var (
	driver  = user.Identity{ID: memstore.DemoDriverID, Role: user.RoleDriver}
	shipper = user.Identity{ID: memstore.DemoShipperID, Role: user.RoleShipper}
	admin   = user.Identity{ID: memstore.DemoAdminID, Role: user.RoleAdmin}
	outside = user.Identity{ID: "550e8400-e29b-41d4-a716-446655440099", Role: user.RoleShipper}
)

const reqID = memstore.DemoRequestID

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu      sync.Mutex
	intents []notification.Intent
}

func (n *recordingNotifier) Notify(_ context.Context, in notification.Intent) {
	n.mu.Lock()
	n.intents = append(n.intents, in)
	n.mu.Unlock()
}

func (n *recordingNotifier) For(userID string) []notification.Intent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification.Intent
	for _, in := range n.intents {
		if in.UserID == userID {
			out = append(out, in)
		}
	}
	return out
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, exchange, routingKey string, _ []byte) error {
	p.mu.Lock()
	p.keys = append(p.keys, exchange+"/"+routingKey)
	p.mu.Unlock()
	return nil
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type testPeer struct {
	user, conn string

	mu     sync.Mutex
	frames []frame
	closed bool
}

func (p *testPeer) ConnID() string { return p.conn }
func (p *testPeer) UserID() string { return p.user }

func (p *testPeer) Send(b []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	var f frame
	if err := json.Unmarshal(b, &f); err != nil {
		return false
	}
	p.frames = append(p.frames, f)
	return true
}

func (p *testPeer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *testPeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// of returns the payloads of every frame of the given type.
func (p *testPeer) of(event string) []json.RawMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []json.RawMessage
	for _, f := range p.frames {
		if f.Type == event {
			out = append(out, f.Data)
		}
	}
	return out
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memstore.Store
	hub   *realtime.Hub
	svc   *chatService
	clock *clock
	notes *recordingNotifier
	pub   *recordingPublisher
	conns int
}

func newFixture(t *testing.T, tweak ...func(*Options)) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, memstore.Seed(ctx, store))

	clk := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	hub := realtime.NewHub(logger.Discard(), realtime.NewRegistry(clk.Now), realtime.NewRooms())
	notes := &recordingNotifier{}
	pub := &recordingPublisher{}

	opts := Options{Clock: clk.Now, IdleTimeout: 5 * time.Minute, SweepInterval: time.Minute}
	for _, fn := range tweak {
		fn(&opts)
	}
	svc := NewChatService(logger.Discard(), store.UnitOfWork(), store.Users(), store.Requests(),
		store.Messages(), hub, notes, pub, opts).(*chatService)

	return &fixture{t: t, ctx: ctx, store: store, hub: hub, svc: svc, clock: clk, notes: notes, pub: pub}
}

func (f *fixture) connect(who user.Identity) *testPeer {
	f.conns++
	p := &testPeer{user: who.ID, conn: fmt.Sprintf("%s-%d", who.ID, f.conns)}
	f.svc.Connect(f.ctx, who, p)
	return p
}

func (f *fixture) join(who user.Identity) {
	f.t.Helper()
	_, err := f.svc.JoinConversation(f.ctx, who, reqID)
	require.NoError(f.t, err)
}

func (f *fixture) request(id string) *request.Request {
	f.t.Helper()
	var r *request.Request
	require.NoError(f.t, f.store.UnitOfWork().WithinTx(f.ctx, func(ctx context.Context) error {
		var err error
		r, err = f.store.Requests().GetByID(ctx, id)
		return err
	}))
	return r
}

// addRequest stores a request between the demo driver and shipper in the given state.
func (f *fixture) addRequest(id string, status request.Status) {
	f.t.Helper()
	r, err := request.New(id, memstore.DemoTripID, memstore.DemoDriverID, memstore.DemoShipperID)
	require.NoError(f.t, err)
	r.Status = status
	require.NoError(f.t, f.store.UnitOfWork().WithinTx(f.ctx, func(ctx context.Context) error {
		return f.store.Requests().CreateRequest(ctx, r)
	}))
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}
