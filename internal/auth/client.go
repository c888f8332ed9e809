package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// eventBufferSize はイベントチャネルのバッファ数。
const eventBufferSize = 16

// Client はブラウザセッション1つ分の認証状態を保持する。
// 状態の変化はEventsのチャネルに発生順で配送される。チャネルの受信者は1つに限る。
type Client struct {
	svc *Service

	// emitMu は状態変更とイベント送信の組を直列化する。
	emitMu sync.Mutex

	mu        sync.Mutex
	user      *User
	sessionID string

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(svc *Service) *Client {
	return &Client{
		svc:    svc,
		events: make(chan Event, eventBufferSize),
		done:   make(chan struct{}),
	}
}

// Events はイベントチャネルを返す。
func (c *Client) Events() <-chan Event {
	return c.events
}

// Current は現在サインイン中のユーザーを返す。未サインインの場合はnil。
func (c *Client) Current() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// SessionID は現在のセッションIDを返す。未サインインの場合は空文字列。
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Start は未サインイン状態で開始し、INITIAL_SESSIONを通知する。
func (c *Client) Start() {
	c.transition(nil, "", EventInitialSession)
}

// Resume は既存のセッションIDから状態を復元し、INITIAL_SESSIONを通知する。
// セッションが無効な場合はErrSessionNotFoundを返し、イベントは通知しない。
func (c *Client) Resume(ctx context.Context, sessionID string) error {
	user, session, err := c.svc.Resume(ctx, sessionID)
	if err != nil {
		return err
	}
	c.transition(user, session.ID, EventInitialSession)
	return nil
}

// SignIn はメールアドレスとパスワードでサインインし、SIGNED_INを通知する。
// 既にサインイン中の場合は古いセッションを破棄して置き換える。
func (c *Client) SignIn(ctx context.Context, email, password string) (*User, error) {
	user, session, err := c.svc.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	previous := c.transition(user, session.ID, EventSignedIn)
	if previous != "" && previous != session.ID {
		if err := c.svc.Revoke(ctx, previous); err != nil {
			slog.Warn("failed to revoke replaced session",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	u := *user
	return &u, nil
}

// SignUp は新しい認証情報を作成する。サインイン状態は変化しない。
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*User, error) {
	return c.svc.Register(ctx, email, password, fullName)
}

// SignOut はローカルの状態を消去してからセッションを破棄し、SIGNED_OUTを通知する。
// 未サインインの場合は何もしない。
func (c *Client) SignOut(ctx context.Context) error {
	c.emitMu.Lock()
	c.mu.Lock()
	wasSignedIn := c.user != nil
	sessionID := c.sessionID
	c.user = nil
	c.sessionID = ""
	c.mu.Unlock()
	if wasSignedIn {
		c.emit(Event{Type: EventSignedOut})
	}
	c.emitMu.Unlock()

	if sessionID == "" {
		return nil
	}
	if err := c.svc.Revoke(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// NotifyUserUpdated はサインイン中であればUSER_UPDATEDを通知する。
func (c *Client) NotifyUserUpdated() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	user := c.Current()
	if user == nil {
		return
	}
	c.emit(Event{Type: EventUserUpdated, User: user})
}

// Close はクライアントを停止する。送信待ちのイベントは破棄される。
// セッション自体は破棄しないため、同じセッションIDで再度Resumeできる。
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done はClose後に閉じられるチャネルを返す。
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// transition は状態を置き換えてイベントを通知し、置き換え前のセッションIDを返す。
func (c *Client) transition(user *User, sessionID string, typ EventType) string {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	previous := c.sessionID
	c.user = user
	c.sessionID = sessionID
	c.mu.Unlock()

	var evUser *User
	if user != nil {
		u := *user
		evUser = &u
	}
	c.emit(Event{Type: typ, User: evUser})
	return previous
}

// emit はイベントを送信する。Close済みの場合は破棄する。
func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}
