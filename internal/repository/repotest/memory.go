// Package repotest はテスト用のインメモリリポジトリを提供する。
package repotest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/churchdash/internal/model"
	"github.com/hitoshi/churchdash/internal/repository"
)

var (
	_ repository.CredentialRepository = (*Credentials)(nil)
	_ repository.SessionRepository    = (*Sessions)(nil)
	_ repository.ProfileRepository    = (*Profiles)(nil)
)

// Credentials はインメモリのCredentialRepository。
type Credentials struct {
	mu   sync.Mutex
	byID map[string]*model.Credential
}

// NewCredentials は空のCredentialsを生成する。
func NewCredentials() *Credentials {
	return &Credentials{byID: make(map[string]*model.Credential)}
}

func (r *Credentials) FindByEmail(_ context.Context, email string) (*model.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if strings.EqualFold(c.Email, email) {
			out := *c
			return &out, nil
		}
	}
	return nil, nil
}

func (r *Credentials) FindByID(_ context.Context, id string) (*model.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (r *Credentials) Create(_ context.Context, cred *model.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if strings.EqualFold(c.Email, cred.Email) {
			return repository.ErrDuplicate
		}
	}
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	cred.CreatedAt = time.Now()
	stored := *cred
	r.byID[cred.ID] = &stored
	return nil
}

// Sessions はインメモリのSessionRepository。
type Sessions struct {
	mu   sync.Mutex
	byID map[string]*model.Session
}

// NewSessions は空のSessionsを生成する。
func NewSessions() *Sessions {
	return &Sessions{byID: make(map[string]*model.Session)}
}

func (r *Sessions) Create(_ context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *s
	r.byID[s.ID] = &stored
	return nil
}

func (r *Sessions) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok || time.Now().After(s.ExpiresAt) {
		return nil, nil
	}
	out := *s
	return &out, nil
}

func (r *Sessions) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

func (r *Sessions) Extend(_ context.Context, id string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok || time.Now().After(s.ExpiresAt) {
		return repository.ErrNotFound
	}
	s.ExpiresAt = expiresAt
	return nil
}

// Len は保存されているセッション数を返す。
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Profiles はインメモリのProfileRepository。
// 部署はAddDepartmentで登録したものだけが参照できる。
type Profiles struct {
	mu          sync.Mutex
	byID        map[string]*model.ProfileRow
	departments map[string]string
	getErr      error
}

// NewProfiles は空のProfilesを生成する。
func NewProfiles() *Profiles {
	return &Profiles{
		byID:        make(map[string]*model.ProfileRow),
		departments: make(map[string]string),
	}
}

// AddDepartment は参照可能な部署を登録する。
func (r *Profiles) AddDepartment(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.departments[id] = name
}

// FailGet は以降のGetがerrを返すようにする。nilで解除する。
func (r *Profiles) FailGet(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getErr = err
}

func (r *Profiles) Get(_ context.Context, id string) (*model.ProfileRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	p, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

func (r *Profiles) Insert(_ context.Context, row *model.ProfileRow) (*model.ProfileRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[row.ID]; ok {
		return nil, repository.ErrDuplicate
	}
	stored := *row
	now := time.Now()
	stored.JoinedAt = now
	stored.CreatedAt = now
	r.byID[row.ID] = &stored
	out := stored
	return &out, nil
}

func (r *Profiles) Update(_ context.Context, id string, u model.ProfileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if u.DepartmentID != nil && *u.DepartmentID != "" {
		if _, ok := r.departments[*u.DepartmentID]; !ok {
			return repository.ErrInvalidReference
		}
	}
	if u.FullName != nil {
		p.FullName = *u.FullName
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.Address != nil {
		p.Address = *u.Address
	}
	if u.Language != nil {
		p.Language = *u.Language
	}
	if u.DepartmentID != nil {
		p.DepartmentID = *u.DepartmentID
		p.DepartmentName = r.departments[*u.DepartmentID]
	}
	return nil
}

// SetRole はロールを直接書き換える。管理者によるロール変更の再現に使う。
func (r *Profiles) SetRole(id string, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		p.Role = role
	}
}
