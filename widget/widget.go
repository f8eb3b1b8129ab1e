// Package widget is the chat overlay's sync controller. It binds one room,
// merges the websocket push channel and the polling pull channel into a
// single de-duplicated timeline, and drives the unread badge and mention
// notifications.
//
// All state lives on one event loop goroutine. Network calls run on helper
// goroutines and hand their results back to the loop, so the ledger's id
// check is the only ordering mechanism between the two channels.
package widget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"chatoverlay/api"
	"chatoverlay/badge"
	"chatoverlay/client"
	"chatoverlay/datekey"
	"chatoverlay/ledger"
	"chatoverlay/mention"
	"chatoverlay/notify"
	"chatoverlay/session"

	"github.com/sourcegraph/conc"
	"golang.org/x/sync/singleflight"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoRoom       = errors.New("no chat room available")
	ErrDisposed     = errors.New("widget disposed")
)

// Transport is what the controller needs from the backend. *client.Client
// implements it.
type Transport interface {
	Rooms(ctx context.Context) ([]api.Room, error)
	Messages(ctx context.Context, roomID, afterID int64) ([]api.Message, error)
	Send(ctx context.Context, req api.SendMessageRequest) (api.Message, error)
	Subscribe(ctx context.Context, roomID int64, deliver func(api.Message)) error
}

// Handle controls one running overlay instance.
type Handle struct {
	cfg       Config
	transport Transport
	logger    *log.Logger
	debug     bool
	identity  string

	ctx      context.Context
	cancel   context.CancelFunc
	inbox    chan func()
	loopDone chan struct{}
	helpers  conc.WaitGroup
	binding  singleflight.Group
	room     atomic.Int64 // mirror of the bound room for callers off the loop

	// owned by the loop goroutine
	state       *session.State
	ledger      *ledger.Ledger
	badge       *badge.Tracker
	onMessage   []func(ledger.Entry)
	onBadge     []func(badge.Badge)
	initialDone bool
	pollCancel  context.CancelFunc
	final       session.Snapshot
}

type Option func(*options)

type options struct {
	logger    *log.Logger
	debug     bool
	notifier  notify.Notifier
	prompter  notify.Prompter
	dateOpts  []datekey.Option
	onMessage []func(ledger.Entry)
	onBadge   []func(badge.Badge)
}

func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDebug logs transport failures that are otherwise retried silently.
func WithDebug(debug bool) Option {
	return func(o *options) { o.debug = debug }
}

func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithPrompter answers the notification permission request when
// Config.Notifications is "prompt".
func WithPrompter(p notify.Prompter) Option {
	return func(o *options) { o.prompter = p }
}

func WithDateOptions(opts ...datekey.Option) Option {
	return func(o *options) { o.dateOpts = append(o.dateOpts, opts...) }
}

// WithMessageHandler registers fn before any message can be applied.
func WithMessageHandler(fn func(ledger.Entry)) Option {
	return func(o *options) { o.onMessage = append(o.onMessage, fn) }
}

func WithBadgeHandler(fn func(badge.Badge)) Option {
	return func(o *options) { o.onBadge = append(o.onBadge, fn) }
}

// Connect builds the default HTTP/websocket transport from cfg and starts
// the controller.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Handle, error) {
	c, err := client.New(cfg.Server, cfg.withDefaults().BasePath)
	if err != nil {
		return nil, err
	}
	return Start(ctx, cfg, c, opts...), nil
}

// Start resolves the identity and begins syncing. With the background
// policy the room is bound right away; with the panel policy binding waits
// for the first Open or Send. Callbacks run on the controller goroutine and must not call
// back into the Handle synchronously.
func Start(ctx context.Context, cfg Config, transport Transport, opts ...Option) *Handle {
	cfg = cfg.withDefaults()
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard, "", 0)
	}

	h := &Handle{
		cfg:       cfg,
		transport: transport,
		logger:    o.logger,
		debug:     o.debug,
		identity:  ResolveUsername(cfg.Username),
		inbox:     make(chan func()),
		loopDone:  make(chan struct{}),
		state:     session.New(),
		onMessage: o.onMessage,
		onBadge:   o.onBadge,
	}
	h.ctx, h.cancel = context.WithCancel(ctx)

	labels := cfg.Labels
	dates := datekey.New(append([]datekey.Option{datekey.WithLabels(labels)}, o.dateOpts...)...)
	aliases := mention.BuildAliasSet(h.identity, cfg.MentionAliases)

	notifier := o.notifier
	if notifier == nil {
		notifier = notify.NewDesktop(notify.ParsePermission(cfg.Notifications), o.prompter)
	}

	h.ledger = ledger.New(h.state, dates, h.identity, aliases)
	h.badge = badge.NewTracker(h.state, h.publishBadge)
	h.ledger.Attach(ledger.SinkFunc(h.render))
	h.ledger.Attach(h.badge)
	h.ledger.Attach(notify.NewGate(notifier, o.logger))

	go h.run()
	// Under PollPanel binding waits for the first Open or Send.
	if cfg.PollPolicy == PollBackground {
		h.spawn(func() {
			if _, err := h.ensureBound(h.ctx); err != nil {
				h.debugf("initial bind: %v", err)
			}
		})
	}
	return h
}

func (h *Handle) run() {
	defer close(h.loopDone)
	for {
		select {
		case fn := <-h.inbox:
			fn()
		case <-h.ctx.Done():
			if h.pollCancel != nil {
				h.pollCancel()
			}
			h.final = h.state.Snapshot()
			return
		}
	}
}

// post runs fn on the loop. It reports false once the handle is disposed.
func (h *Handle) post(fn func()) bool {
	select {
	case h.inbox <- fn:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Handle) spawn(fn func()) {
	if h.ctx.Err() != nil {
		return
	}
	h.helpers.Go(fn)
}

func (h *Handle) debugf(format string, args ...any) {
	if h.debug {
		h.logger.Printf(format, args...)
	}
}

// Identity is the resolved username used for self-detection.
func (h *Handle) Identity() string {
	return h.identity
}

func (h *Handle) OnMessage(fn func(ledger.Entry)) {
	h.post(func() { h.onMessage = append(h.onMessage, fn) })
}

func (h *Handle) OnBadge(fn func(badge.Badge)) {
	h.post(func() { h.onBadge = append(h.onBadge, fn) })
}

func (h *Handle) render(e ledger.Entry) {
	for _, fn := range h.onMessage {
		fn(e)
	}
}

func (h *Handle) publishBadge(b badge.Badge) {
	for _, fn := range h.onBadge {
		fn(b)
	}
}

// ensureBound returns the bound room, fetching the room list first when no
// room is bound yet. Concurrent callers share one request.
func (h *Handle) ensureBound(ctx context.Context) (int64, error) {
	if id := h.room.Load(); id != 0 {
		return id, nil
	}
	v, err, _ := h.binding.Do("bind", func() (any, error) {
		if id := h.room.Load(); id != 0 {
			return id, nil
		}
		rooms, err := h.transport.Rooms(ctx)
		if err != nil {
			return int64(0), fmt.Errorf("list rooms: %w", err)
		}
		if len(rooms) == 0 {
			return int64(0), ErrNoRoom
		}

		bound := make(chan int64, 1)
		if !h.post(func() {
			h.bind(rooms[0].ID)
			bound <- h.state.RoomID().OrEmpty()
		}) {
			return int64(0), ErrDisposed
		}
		return <-bound, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (h *Handle) bind(roomID int64) {
	if h.state.Bound() {
		return
	}
	h.state.Bind(roomID)
	h.room.Store(roomID)
	h.logger.Printf("bound to room %d", roomID)

	h.spawn(func() { h.pushLoop(roomID) })
	h.pull(true)
	if h.cfg.PollPolicy == PollBackground || h.state.PanelOpen {
		h.startPolling()
	}
}

// pull fetches everything above the high-water mark. Until the first
// catch-up lands every fetch is treated as part of it.
func (h *Handle) pull(initial bool) {
	roomID, ok := h.state.RoomID().Get()
	if !ok {
		return
	}
	initial = initial || !h.initialDone
	afterID := h.state.LastAppliedID
	h.spawn(func() {
		msgs, err := h.transport.Messages(h.ctx, roomID, afterID)
		if err != nil {
			h.debugf("pull after %d: %v", afterID, err)
			return
		}
		h.post(func() {
			h.ledger.ApplyAll(msgs, initial)
			if initial {
				h.initialDone = true
			}
		})
	})
}

func (h *Handle) startPolling() {
	if h.pollCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(h.ctx)
	h.pollCancel = cancel
	h.spawn(func() {
		ticker := time.NewTicker(h.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.post(func() {
					if ctx.Err() == nil {
						h.pull(false)
					}
				})
			}
		}
	})
}

func (h *Handle) stopPolling() {
	if h.pollCancel == nil {
		return
	}
	h.pollCancel()
	h.pollCancel = nil
}

// pushLoop keeps a subscription to roomID open, resubscribing after
// ReconnectDelay whenever it drops.
func (h *Handle) pushLoop(roomID int64) {
	for {
		err := h.transport.Subscribe(h.ctx, roomID, func(m api.Message) {
			if m.RoomID != 0 && m.RoomID != roomID {
				return
			}
			h.post(func() { h.ledger.Apply(m, false) })
		})
		if h.ctx.Err() != nil {
			return
		}
		h.debugf("push channel: %v", err)

		select {
		case <-h.ctx.Done():
			return
		case <-time.After(h.cfg.ReconnectDelay):
		}
	}
}

// Open shows the panel: the badge clears and a catch-up fetch runs.
func (h *Handle) Open() {
	h.post(func() {
		h.badge.OnPanelOpened()
		if !h.state.Bound() {
			h.spawn(func() {
				if _, err := h.ensureBound(h.ctx); err != nil {
					h.debugf("bind on open: %v", err)
				}
			})
			return
		}
		if h.cfg.PollPolicy == PollPanel {
			h.startPolling()
		}
		h.pull(false)
	})
}

func (h *Handle) Close() {
	h.post(func() {
		h.badge.OnPanelClosed()
		if h.cfg.PollPolicy == PollPanel {
			h.stopPolling()
		}
	})
}

// Refresh triggers an immediate pull.
func (h *Handle) Refresh() {
	h.post(func() { h.pull(false) })
}

// Send posts text to the bound room, binding first if needed. The echo
// reaches the timeline through the ledger like any other message.
func (h *Handle) Send(ctx context.Context, text string) (api.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return api.Message{}, ErrEmptyMessage
	}
	if h.ctx.Err() != nil {
		return api.Message{}, ErrDisposed
	}

	roomID, err := h.ensureBound(ctx)
	if err != nil {
		return api.Message{}, err
	}

	msg, err := h.transport.Send(ctx, api.SendMessageRequest{
		RoomID:   roomID,
		Username: h.identity,
		Message:  text,
	})
	if err != nil {
		return api.Message{}, fmt.Errorf("send message: %w", err)
	}

	h.post(func() { h.pull(false) })
	return msg, nil
}

// State returns a copy of the session state.
func (h *Handle) State() session.Snapshot {
	reply := make(chan session.Snapshot, 1)
	if h.post(func() { reply <- h.state.Snapshot() }) {
		return <-reply
	}
	<-h.loopDone
	return h.final
}

func (h *Handle) Badge() badge.Badge {
	reply := make(chan badge.Badge, 1)
	if h.post(func() { reply <- h.badge.Badge() }) {
		return <-reply
	}
	<-h.loopDone
	return badge.Badge{}
}

// Dispose stops both channels and waits for every helper goroutine. No
// callback runs after Dispose returns.
func (h *Handle) Dispose() {
	h.cancel()
	<-h.loopDone
	h.helpers.Wait()
}
