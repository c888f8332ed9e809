// Package session はブラウザセッション1つ分のサインイン状態を管理する。
// Storeがこの状態の唯一の書き手であり、他のコンポーネントはSnapshotで読み取る。
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/churchdash/internal/auth"
	"github.com/hitoshi/churchdash/internal/guard"
	"github.com/hitoshi/churchdash/internal/model"
	"github.com/hitoshi/churchdash/internal/repository"
)

// DefaultLanguage は新規プロフィールの言語。
const DefaultLanguage = "en"

// Provider は認証プロバイダーのうちStoreが利用する操作。
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*auth.User, error)
	SignUp(ctx context.Context, email, password, fullName string) (*auth.User, error)
	SignOut(ctx context.Context) error
	Current() *auth.User
	Events() <-chan auth.Event
}

// Recorder はサインイン結果などの計測値の記録先。
type Recorder interface {
	RecordSignIn(result string)
	RecordProfileProvisioned()
}

type nopRecorder struct{}

func (nopRecorder) RecordSignIn(string)       {}
func (nopRecorder) RecordProfileProvisioned() {}

// errStale は解決結果が既に古くなり破棄されたことを示す。
var errStale = errors.New("resolution superseded")

// Store はサインイン中のIdentityとloadingフラグを保持する。
// 生成直後はloading=trueで、最初のINITIAL_SESSIONを処理した時点でReadyになる。
type Store struct {
	provider Provider
	profiles repository.ProfileRepository
	logger   *slog.Logger
	recorder Recorder
	language string

	// resolveMu はプロフィール解決を直列化する。
	resolveMu sync.Mutex

	mu       sync.Mutex
	identity *model.Identity
	loading  bool
	// epoch はサインイン・サインアウトのたびに進み、古い解決結果の判定に使う。
	epoch uint64
	// resolved は最後に結果（成功または失敗）を反映したepoch。
	resolved uint64
	changed  chan struct{}

	ready     chan struct{}
	readyOnce sync.Once
}

// Option はStoreの任意設定。
type Option func(*Store)

// WithRecorder は計測値の記録先を設定する。
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

// WithDefaultLanguage は新規プロフィールに設定する言語を変更する。
func WithDefaultLanguage(lang string) Option {
	return func(s *Store) {
		if lang != "" {
			s.language = lang
		}
	}
}

// NewStore は新しいStoreを生成する。イベントの処理を始めるにはRunを呼ぶこと。
func NewStore(provider Provider, profiles repository.ProfileRepository, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		provider: provider,
		profiles: profiles,
		logger:   logger,
		recorder: nopRecorder{},
		language: DefaultLanguage,
		loading:  true,
		changed:  make(chan struct{}),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot は現在の状態を返す。Identityはコピーのため変更してよい。
func (s *Store) Snapshot() guard.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := guard.Snapshot{Loading: s.loading}
	if s.identity != nil {
		id := *s.identity
		snap.Identity = &id
	}
	return snap
}

// Ready は最初のセッション解決が終わると閉じられるチャネルを返す。
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Run はプロバイダーのイベントを発生順に1件ずつ処理する。
// チャネルが閉じられるかコンテキストがキャンセルされるまで戻らない。
func (s *Store) Run(ctx context.Context) {
	events := s.provider.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handle(ctx, ev)
		}
	}
}

func (s *Store) handle(ctx context.Context, ev auth.Event) {
	switch ev.Type {
	case auth.EventInitialSession:
		s.mu.Lock()
		epoch := s.epoch
		s.mu.Unlock()
		if err := s.resolve(ctx, ev.User, epoch, false); err != nil && !errors.Is(err, errStale) {
			s.logger.Error("failed to resolve initial session", slog.String("error", err.Error()))
		}
		s.readyOnce.Do(func() { close(s.ready) })

	case auth.EventSignedIn:
		s.mu.Lock()
		epoch := s.epoch
		s.mu.Unlock()
		if err := s.resolve(ctx, ev.User, epoch, false); err != nil && !errors.Is(err, errStale) {
			s.logger.Error("failed to resolve profile after sign-in",
				slog.String("user_id", userID(ev.User)),
				slog.String("error", err.Error()),
			)
		}

	case auth.EventUserUpdated:
		s.mu.Lock()
		epoch, loading := s.epoch, s.loading
		s.mu.Unlock()
		if loading {
			// 進行中のサインインが最新のプロフィールを読む
			return
		}
		if err := s.resolve(ctx, ev.User, epoch, true); err != nil && !errors.Is(err, errStale) {
			s.logger.Warn("failed to refresh profile, keeping cached identity",
				slog.String("user_id", userID(ev.User)),
				slog.String("error", err.Error()),
			)
		}

	case auth.EventSignedOut:
		s.mu.Lock()
		if !s.loading && s.provider.Current() == nil {
			s.identity = nil
			s.broadcastLocked()
		}
		s.mu.Unlock()
	}
}

// SignIn はサインインしてプロフィールを解決する。
// 解決が終わるまでloading=trueとなり、その間のアクセス判定は保留される。
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	if err := s.waitReady(ctx); err != nil {
		s.recorder.RecordSignIn("network_failure")
		return model.NewNetworkFailureError()
	}

	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.loading = true
	s.broadcastLocked()
	s.mu.Unlock()

	user, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		s.mu.Lock()
		if s.epoch == epoch {
			s.loading = false
			s.resolved = epoch
			s.broadcastLocked()
		}
		s.mu.Unlock()

		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.recorder.RecordSignIn("invalid_credentials")
			return model.NewInvalidCredentialsError()
		}
		s.logger.Error("sign-in failed", slog.String("error", err.Error()))
		s.recorder.RecordSignIn("network_failure")
		return model.NewNetworkFailureError()
	}

	// プロフィールの解決はSIGNED_INイベントを処理するRunが行う
	if err := s.waitResolved(ctx, epoch); err != nil {
		s.recorder.RecordSignIn("network_failure")
		return model.NewNetworkFailureError()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.epoch != epoch:
		s.recorder.RecordSignIn("superseded")
		return model.NewNotAuthenticatedError()
	case s.identity == nil || s.identity.ID != user.ID:
		s.recorder.RecordSignIn("network_failure")
		return model.NewNetworkFailureError()
	default:
		s.recorder.RecordSignIn("success")
		return nil
	}
}

// SignUp は認証情報のみを作成する。プロフィールは初回サインイン時に作成される。
func (s *Store) SignUp(ctx context.Context, email, password, fullName string) error {
	if _, err := s.provider.SignUp(ctx, email, password, fullName); err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			return model.NewEmailTakenError()
		}
		s.logger.Error("sign-up failed", slog.String("error", err.Error()))
		return model.NewNetworkFailureError()
	}
	return nil
}

// SignOut はローカルのIdentityを消去してから外部のセッションを破棄する。
// 未サインインの状態で呼んでもよい。
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.epoch++
	s.identity = nil
	s.loading = false
	s.resolved = s.epoch
	s.broadcastLocked()
	s.mu.Unlock()

	if err := s.provider.SignOut(ctx); err != nil {
		s.logger.Error("failed to revoke session on sign-out", slog.String("error", err.Error()))
		return model.NewNetworkFailureError()
	}
	return nil
}

// UpdateProfile はプロフィールを部分更新する。
// ローカルのIdentityへの反映は、保存が成功した後に限る。
// 未知のロールのIdentityは未サインインとして扱う。
func (s *Store) UpdateProfile(ctx context.Context, update model.ProfileUpdate) error {
	s.mu.Lock()
	loading := s.loading
	var current *model.Identity
	if s.identity != nil {
		id := *s.identity
		current = &id
	}
	s.mu.Unlock()

	if loading {
		return model.NewSessionPendingError()
	}
	if current == nil || !current.Role.Valid() {
		return model.NewNotAuthenticatedError()
	}
	if update.IsEmpty() {
		return nil
	}

	if err := s.profiles.Update(ctx, current.ID, update); err != nil {
		if errors.Is(err, repository.ErrInvalidReference) {
			return model.NewValidationError(map[string]string{"department_id": "validation.department"})
		}
		s.logger.Error("failed to update profile",
			slog.String("user_id", current.ID),
			slog.String("error", err.Error()),
		)
		return model.NewNetworkFailureError()
	}

	s.mu.Lock()
	if s.identity != nil && s.identity.ID == current.ID {
		s.identity = update.ApplyTo(s.identity)
		s.broadcastLocked()
	}
	s.mu.Unlock()
	return nil
}

// SaveLanguage は表示言語をプロフィールに保存する。
func (s *Store) SaveLanguage(ctx context.Context, lang string) error {
	return s.UpdateProfile(ctx, model.ProfileUpdate{Language: &lang})
}

// resolve はユーザーのプロフィールを取得し、なければ作成してIdentityに反映する。
// keepOnError=trueの場合、失敗してもキャッシュ済みのIdentityを残す。
func (s *Store) resolve(ctx context.Context, user *auth.User, epoch uint64, keepOnError bool) error {
	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	if user == nil {
		s.apply(epoch, nil, nil)
		return nil
	}

	identity, err := s.loadOrProvision(ctx, user)
	if err != nil {
		if keepOnError {
			return err
		}
		if !s.apply(epoch, nil, user) {
			return errStale
		}
		return err
	}

	if !s.apply(epoch, identity, user) {
		s.logger.Debug("discarding stale profile resolution", slog.String("user_id", user.ID))
		return errStale
	}
	return nil
}

// apply は解決結果が現在のセッションのものであれば反映し、反映したかを返す。
func (s *Store) apply(epoch uint64, identity *model.Identity, user *auth.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		return false
	}
	if user != nil {
		current := s.provider.Current()
		if current == nil || current.ID != user.ID {
			return false
		}
	}

	s.identity = identity
	s.loading = false
	s.resolved = epoch
	s.broadcastLocked()
	return true
}

func (s *Store) loadOrProvision(ctx context.Context, user *auth.User) (*model.Identity, error) {
	row, err := s.profiles.Get(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row.Identity(), nil
	}

	fullName := strings.TrimSpace(user.FullName)
	if fullName == "" {
		fullName = user.Email
	}
	inserted, err := s.profiles.Insert(ctx, &model.ProfileRow{
		ID:       user.ID,
		Email:    user.Email,
		FullName: fullName,
		Role:     string(model.RoleNewcomer),
		Language: s.language,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// 同時に走った別の解決が先に作成した
		row, err = s.profiles.Get(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, errors.New("profile vanished after duplicate insert")
		}
		return row.Identity(), nil
	}
	if err != nil {
		return nil, err
	}

	s.recorder.RecordProfileProvisioned()
	s.logger.Info("profile provisioned",
		slog.String("user_id", user.ID),
		slog.String("role", inserted.Role),
	)
	return inserted.Identity(), nil
}

func (s *Store) waitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitResolved はepochの解決結果が反映されるか、より新しい操作に置き換わるまで待つ。
func (s *Store) waitResolved(ctx context.Context, epoch uint64) error {
	for {
		s.mu.Lock()
		done := s.epoch != epoch || s.resolved == epoch
		changed := s.changed
		s.mu.Unlock()
		if done {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// broadcastLocked は状態の変化を待機者に知らせる。s.muを保持して呼ぶこと。
func (s *Store) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func userID(u *auth.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
