// Package hub はブラウザセッションごとのクライアント（認証状態とSession Store）を管理する。
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/churchdash/internal/auth"
	"github.com/hitoshi/churchdash/internal/repository"
	"github.com/hitoshi/churchdash/internal/session"
)

var _ repository.ProfileChangeSink = (*Hub)(nil)

// ErrNotSignedIn はサインインしていないクライアントを登録しようとしたことを示す。
var ErrNotSignedIn = errors.New("client is not signed in")

// resumeTimeout は共有されるセッション復元1回の上限時間。
const resumeTimeout = 10 * time.Second

// Config はHubの設定を保持する。
type Config struct {
	IdleTTL         time.Duration // 最後のアクセスからクライアントを破棄するまでの時間
	CleanupInterval time.Duration // アイドルクライアントを確認する間隔
}

// DefaultConfig はデフォルトの設定を返す。
func DefaultConfig() Config {
	return Config{
		IdleTTL:         30 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// Observer は稼働中のクライアント数の通知先。
type Observer interface {
	SetLiveClients(n int)
}

type nopObserver struct{}

func (nopObserver) SetLiveClients(int) {}

// Client はブラウザセッション1つ分の認証クライアントとSession Storeの組。
type Client struct {
	auth   *auth.Client
	store  *session.Store
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	lastSeen time.Time
}

// Session はクライアントのSession Storeを返す。
func (c *Client) Session() *session.Store {
	return c.store
}

// SessionID は認証セッションのIDを返す。未サインインの場合は空文字列。
func (c *Client) SessionID() string {
	return c.auth.SessionID()
}

// UserID はサインイン中のユーザーIDを返す。未サインインの場合は空文字列。
func (c *Client) UserID() string {
	if u := c.auth.Current(); u != nil {
		return u.ID
	}
	return ""
}

func (c *Client) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *Client) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Client) close() {
	c.cancel()
	c.auth.Close()
	<-c.done
}

// Hub はセッションIDをキーにクライアントを保持する。
type Hub struct {
	authSvc  *auth.Service
	profiles repository.ProfileRepository
	logger   *slog.Logger
	config   Config
	opts     []session.Option
	observer Observer

	mu      sync.RWMutex
	clients map[string]*Client

	group singleflight.Group

	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// Option はHubの任意設定。
type Option func(*Hub)

// WithStoreOptions は生成するSession Storeに渡す設定を指定する。
func WithStoreOptions(opts ...session.Option) Option {
	return func(h *Hub) { h.opts = append(h.opts, opts...) }
}

// WithObserver は稼働中のクライアント数の通知先を設定する。
func WithObserver(o Observer) Option {
	return func(h *Hub) { h.observer = o }
}

// New は新しいHubを生成する。
// バックグラウンドでアイドルクライアントのクリーンアップを開始する。
func New(authSvc *auth.Service, profiles repository.ProfileRepository, logger *slog.Logger, config Config, opts ...Option) *Hub {
	if config.IdleTTL <= 0 {
		config.IdleTTL = DefaultConfig().IdleTTL
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}
	h := &Hub{
		authSvc:  authSvc,
		profiles: profiles,
		logger:   logger,
		config:   config,
		observer: nopObserver{},
		clients:  make(map[string]*Client),
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}

	go h.cleanupLoop()

	return h
}

// Open は未サインインの新しいクライアントを生成する。
// サインインに成功したらAttachで登録し、不要になったらReleaseで破棄すること。
func (h *Hub) Open(ctx context.Context) (*Client, error) {
	c := h.newClient()
	c.auth.Start()

	select {
	case <-c.store.Ready():
		return c, nil
	case <-ctx.Done():
		c.close()
		return nil, fmt.Errorf("failed to open client: %w", ctx.Err())
	}
}

// Attach はサインイン済みのクライアントをセッションIDで登録する。
func (h *Hub) Attach(c *Client) error {
	sid := c.SessionID()
	if sid == "" {
		return ErrNotSignedIn
	}
	c.touch(h.now())

	h.mu.Lock()
	previous := h.clients[sid]
	h.clients[sid] = c
	n := len(h.clients)
	h.mu.Unlock()

	if previous != nil && previous != c {
		previous.close()
	}
	h.observer.SetLiveClients(n)
	return nil
}

// Release は登録されていないクライアントを破棄する。
func (h *Hub) Release(c *Client) {
	if c != nil {
		c.close()
	}
}

// Resume はセッションIDに対応するクライアントを返す。
// 保持していない場合はセッションを復元して登録する。同じセッションIDの同時復元は1回にまとめる。
// 復元は呼び出し元のキャンセルに影響されず、待機中の他のリクエストと共有される。
// セッションが無効な場合はauth.ErrSessionNotFoundを返す。
func (h *Hub) Resume(ctx context.Context, sid string) (*Client, error) {
	if c := h.lookup(sid); c != nil {
		return c, nil
	}

	ch := h.group.DoChan(sid, func() (any, error) {
		if c := h.lookup(sid); c != nil {
			return c, nil
		}

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resumeTimeout)
		defer cancel()

		c := h.newClient()
		if err := c.auth.Resume(rctx, sid); err != nil {
			c.close()
			return nil, err
		}
		select {
		case <-c.store.Ready():
		case <-rctx.Done():
			c.close()
			return nil, fmt.Errorf("failed to resume client: %w", rctx.Err())
		}

		if err := h.Attach(c); err != nil {
			c.close()
			return nil, err
		}
		h.logger.Debug("client restored", slog.String("user_id", c.UserID()))
		return c, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Client), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to resume client: %w", ctx.Err())
	}
}

// Remove はクライアントの登録を解除して破棄する。登録されていない場合は何もしない。
func (h *Hub) Remove(sid string) {
	h.mu.Lock()
	c, ok := h.clients[sid]
	delete(h.clients, sid)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		h.observer.SetLiveClients(n)
	}
}

// NotifyUser はユーザーのプロフィール変更を、そのユーザーの全クライアントに通知する。
func (h *Hub) NotifyUser(userID string) {
	for _, c := range h.snapshot() {
		if c.UserID() == userID {
			c.auth.NotifyUserUpdated()
		}
	}
}

// NotifyAll は全クライアントにプロフィールの再読み込みを通知する。
// 変更通知を取りこぼした可能性がある場合に使う。
func (h *Hub) NotifyAll() {
	for _, c := range h.snapshot() {
		c.auth.NotifyUserUpdated()
	}
}

// Len は登録されているクライアント数を返す。
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop はクリーンアップを停止し、全クライアントを破棄する。
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)

		h.mu.Lock()
		clients := h.clients
		h.clients = make(map[string]*Client)
		h.mu.Unlock()

		for _, c := range clients {
			c.close()
		}
		h.observer.SetLiveClients(0)
	})
}

func (h *Hub) newClient() *Client {
	ac := h.authSvc.NewClient()
	store := session.NewStore(ac, h.profiles, h.logger, h.opts...)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		auth:     ac,
		store:    store,
		cancel:   cancel,
		done:     make(chan struct{}),
		lastSeen: h.now(),
	}
	go func() {
		defer close(c.done)
		store.Run(ctx)
	}()
	return c
}

func (h *Hub) lookup(sid string) *Client {
	h.mu.RLock()
	c, ok := h.clients[sid]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	c.touch(h.now())
	return c
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// cleanupLoop は定期的にアイドルクライアントを破棄する。
func (h *Hub) cleanupLoop() {
	ticker := time.NewTicker(h.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.evictIdle()
		case <-h.stopCh:
			return
		}
	}
}

// evictIdle はIdleTTLを超えてアクセスのないクライアントを破棄する。
// セッション自体は残るため、次のリクエストでResumeにより復元される。
func (h *Hub) evictIdle() {
	threshold := h.now().Add(-h.config.IdleTTL)

	h.mu.Lock()
	var evicted []*Client
	for sid, c := range h.clients {
		if c.idleSince().Before(threshold) {
			evicted = append(evicted, c)
			delete(h.clients, sid)
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	for _, c := range evicted {
		c.close()
	}
	if len(evicted) > 0 {
		h.logger.Info("idle clients evicted",
			slog.Int("evicted_count", len(evicted)),
			slog.Int("live_clients", n),
		)
		h.observer.SetLiveClients(n)
	}
}
