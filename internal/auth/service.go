// Package auth はメールアドレスとパスワードによる認証、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/churchdash/internal/model"
	"github.com/hitoshi/churchdash/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // パスワードハッシュのコスト。0の場合はbcrypt.DefaultCost
}

// Service は認証に関するビジネスロジックを提供する。
// 状態を持たないため、全クライアントで共有する。
type Service struct {
	credRepo    repository.CredentialRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService はServiceを生成する。
func NewService(
	credRepo repository.CredentialRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		credRepo:    credRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// NewClient はこのサービスに接続する新しいClientを生成する。
func (s *Service) NewClient() *Client {
	return newClient(s)
}

// Authenticate はメールアドレスとパスワードを検証し、セッションを発行する。
// 一致しない場合はErrInvalidCredentialsを返す。
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, *model.Session, error) {
	email = NormalizeEmail(email)

	cred, err := s.credRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find credential: %w", err)
	}
	if cred == nil {
		// 登録有無で応答時間が変わらないようにダミーのハッシュと比較する
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to compare password: %w", err)
	}

	session, err := s.createSession(ctx, cred.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user signed in", slog.String("user_id", cred.ID))
	return credentialUser(cred), session, nil
}

// Register は新しい認証情報を作成する。プロフィールとセッションは作成しない。
// メールアドレスが登録済みの場合はErrEmailTakenを返す。
func (s *Service) Register(ctx context.Context, email, password, fullName string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	cred := &model.Credential{
		ID:           uuid.New().String(),
		Email:        NormalizeEmail(email),
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(fullName),
		CreatedAt:    time.Now(),
	}

	if err := s.credRepo.Create(ctx, cred); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create credential: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", cred.ID))
	return credentialUser(cred), nil
}

// Revoke はセッションを破棄する。
func (s *Service) Revoke(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("session revoked")
	return nil
}

// Resume は既存のセッションIDからユーザーを復元し、有効期限を延長する。
// セッションが存在しないか期限切れの場合はErrSessionNotFoundを返す。
func (s *Service) Resume(ctx context.Context, sessionID string) (*User, *model.Session, error) {
	if sessionID == "" {
		return nil, nil, ErrSessionNotFound
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil, ErrSessionNotFound
	}

	cred, err := s.credRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find credential: %w", err)
	}
	if cred == nil {
		return nil, nil, ErrSessionNotFound
	}

	expiresAt := time.Now().Add(s.maxAge())
	if err := s.sessionRepo.Extend(ctx, session.ID, expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, fmt.Errorf("failed to extend session: %w", err)
	}
	session.ExpiresAt = expiresAt

	return credentialUser(cred), session, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(s.maxAge()),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func (s *Service) maxAge() time.Duration {
	return time.Duration(s.config.SessionMaxAge) * time.Second
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("churchdash-dummy-password"), s.config.BcryptCost)
	})
	return s.dummyHash
}

// NormalizeEmail はメールアドレスを比較用に正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func credentialUser(cred *model.Credential) *User {
	return &User{ID: cred.ID, Email: cred.Email, FullName: cred.FullName}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
