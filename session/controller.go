// Package session keeps one live, eventually consistent copy of a pod per
// signed-in session and routes the session's actions to the engine.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/branch/models"
	"github.com/cppla/branch/pod"
	"github.com/cppla/branch/quota"
	"github.com/cppla/branch/store"
)

// ViewMyDashboard is the default view. Any other view value is the id of the
// member whose dashboard is shown.
const ViewMyDashboard = "my-dashboard"

const (
	defaultReconcile = 30 * time.Second
	defaultHighlight = 3 * time.Second
)

var (
	// ErrClosed is returned by a controller after Close.
	ErrClosed         = errors.New("session closed")
	ErrUnknownCheckIn = errors.New("check-in not in this pod")
	ErrInvalidDate    = errors.New("date must be YYYY-MM-DD")
)

// Identity is what the sign-in step knows about the user.
type Identity struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Config wires a controller. Engine, Loader, Broker and Gate are required.
type Config struct {
	SessionID         string
	Engine            *pod.Engine
	Loader            *pod.Loader
	Broker            store.Broker
	Gate              *quota.Gate
	ReconcileInterval time.Duration
	HighlightFor      time.Duration
	Logger            *zap.Logger
}

type loadRequest struct {
	podID string
	reply chan error
}

// Controller owns the cached pod of one session. Only the loop goroutine
// replaces the snapshot once Start returns; readers get immutable snapshots.
type Controller struct {
	id        string
	engine    *pod.Engine
	loader    *pod.Loader
	broker    store.Broker
	gate      *quota.Gate
	reconcile time.Duration
	highlight time.Duration
	log       *zap.SugaredLogger

	mu           sync.RWMutex
	user         *models.User
	current      *models.Pod
	view         string
	selectedDate string
	highlighted  string
	highlightGen int
	pushed       []string
	listeners    map[int]chan *models.Pod
	nextListener int

	sub store.Subscription

	ctx       context.Context
	cancel    context.CancelFunc
	reload    chan struct{}
	requests  chan loadRequest
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	started   bool
}

func NewController(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = defaultReconcile
	}
	if cfg.HighlightFor <= 0 {
		cfg.HighlightFor = defaultHighlight
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		ctx:       ctx,
		cancel:    cancel,
		id:        cfg.SessionID,
		engine:    cfg.Engine,
		loader:    cfg.Loader,
		broker:    cfg.Broker,
		gate:      cfg.Gate,
		reconcile: cfg.ReconcileInterval,
		highlight: cfg.HighlightFor,
		log:       cfg.Logger.Sugar().With("session", cfg.SessionID),
		view:      ViewMyDashboard,
		listeners: map[int]chan *models.Pod{},
		reload:    make(chan struct{}, 1),
		requests:  make(chan loadRequest),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start resolves the user and their pod, performs the first load, subscribes
// to changes and starts the reload loop.
func (c *Controller) Start(ctx context.Context, id Identity) error {
	u, err := c.engine.EnsureUser(ctx, id.Email, id.Name, id.Avatar)
	if err != nil {
		return err
	}
	p, err := c.engine.EnsurePod(ctx, u)
	if err != nil {
		return err
	}
	snapshot, err := c.loader.LoadPod(ctx, p.ID, u.ID)
	if err != nil {
		return err
	}
	sub, err := c.subscribe(ctx, snapshot.ID, u.ID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.user = u
	c.current = snapshot
	c.sub = sub
	c.started = true
	c.mu.Unlock()

	go c.loop()
	c.log.Infow("session started", "user", u.ID, "pod", snapshot.ID)
	return nil
}

func (c *Controller) subscribe(ctx context.Context, podID, userID string) (store.Subscription, error) {
	filters := []store.Filter{
		{Collection: store.CollectionPods, PodID: podID},
		{Collection: store.CollectionMembers, PodID: podID},
		{Collection: store.CollectionCheckIns, PodID: podID},
		{Collection: store.CollectionGoals, PodID: podID},
		{Collection: store.CollectionComments, PodID: podID},
		{Collection: store.CollectionReactions, PodID: podID},
		{Collection: store.CollectionNotifications, UserID: userID},
	}
	sub, err := c.broker.Subscribe(ctx, filters, func(store.Event) { c.RequestReload() })
	if err != nil {
		return nil, fmt.Errorf("subscribe to pod %s: %w", podID, err)
	}
	return sub, nil
}

// RequestReload asks the loop for a reload. Requests made while one is
// pending collapse into it.
func (c *Controller) RequestReload() {
	select {
	case c.reload <- struct{}{}:
	default:
	}
}

func (c *Controller) loop() {
	defer close(c.done)
	ctx := c.ctx

	ticker := time.NewTicker(c.reconcile)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-c.reload:
			c.reloadCurrent(ctx)
		case <-ticker.C:
			c.reloadCurrent(ctx)
		case req := <-c.requests:
			req.reply <- c.load(ctx, req.podID)
		}
	}
}

func (c *Controller) reloadCurrent(ctx context.Context) {
	if err := c.load(ctx, ""); err != nil {
		c.log.Warnw("pod reload failed, keeping previous snapshot", "error", err)
	}
}

// load replaces the snapshot with a fresh aggregate. A non-empty podID
// switches pods and moves the subscription along.
func (c *Controller) load(ctx context.Context, podID string) error {
	c.mu.RLock()
	userID := c.user.ID
	currentID := c.current.ID
	c.mu.RUnlock()

	switching := podID != "" && podID != currentID
	if podID == "" {
		podID = currentID
	}

	snapshot, err := c.loader.LoadPod(ctx, podID, userID)
	if err != nil {
		return err
	}
	if _, ok := snapshot.Member(userID); switching && !ok {
		return pod.ErrNotMember
	}

	if switching {
		c.mu.Lock()
		old := c.sub
		c.sub = nil
		c.mu.Unlock()
		if old != nil {
			_ = old.Close()
		}
		sub, err := c.subscribe(ctx, podID, userID)
		if err != nil {
			c.log.Warnw("pod switched without live updates", "pod", podID, "error", err)
		}
		c.mu.Lock()
		c.sub = sub
		c.view = ViewMyDashboard
		c.selectedDate = ""
		c.highlighted = ""
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.current = snapshot
	listeners := make([]chan *models.Pod, 0, len(c.listeners))
	for _, ch := range c.listeners {
		listeners = append(listeners, ch)
	}
	c.mu.Unlock()

	for _, ch := range listeners {
		offer(ch, snapshot)
	}
	return nil
}

// offer delivers the latest snapshot, replacing one the listener has not
// consumed yet.
func offer(ch chan *models.Pod, p *models.Pod) {
	select {
	case ch <- p:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- p:
	default:
	}
}

func (c *Controller) request(ctx context.Context, podID string) error {
	req := loadRequest{podID: podID, reply: make(chan error, 1)}
	select {
	case c.requests <- req:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh reloads the pod and waits for the new snapshot.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.request(ctx, "")
}

// SwitchPod moves the session to another pod the user belongs to.
func (c *Controller) SwitchPod(ctx context.Context, podID string) error {
	return c.request(ctx, podID)
}

// Watch registers a listener for new snapshots. The channel holds at most
// the latest snapshot. Call the returned func to stop watching.
func (c *Controller) Watch() (<-chan *models.Pod, func()) {
	ch := make(chan *models.Pod, 1)
	c.mu.Lock()
	c.nextListener++
	id := c.nextListener
	c.listeners[id] = ch
	if c.current != nil {
		ch <- c.current
	}
	c.mu.Unlock()
	return ch, func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Close stops the loop and releases the subscription. It is safe to call
// more than once.
func (c *Controller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		c.cancel()
		c.mu.Lock()
		sub := c.sub
		c.sub = nil
		started := c.started
		c.mu.Unlock()
		if sub != nil {
			err = sub.Close()
		}
		if started {
			<-c.done
		}
		c.log.Infow("session closed")
	})
	return err
}

// Done is closed when the loop has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) ID() string {
	return c.id
}
