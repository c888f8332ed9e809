// Package guard はリクエストされたパスに対するアクセス可否を判定する。
package guard

import (
	"github.com/hitoshi/churchdash/internal/model"
	"github.com/hitoshi/churchdash/internal/roles"
)

// Decision はアクセス判定の結果を表す。
type Decision int

const (
	// Allow はそのまま表示してよいことを示す。
	Allow Decision = iota
	// RedirectToLogin はサインイン画面へ遷移させることを示す。
	RedirectToLogin
	// RedirectToRoleDefault はロールの既定画面へ遷移させることを示す。
	RedirectToRoleDefault
)

// String は判定結果の文字列表現を返す。ログとメトリクスのラベルに使う。
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_to_login"
	case RedirectToRoleDefault:
		return "redirect_to_role_default"
	default:
		return "unknown"
	}
}

// Result は判定結果と遷移先を保持する。AllowのときTargetは空。
type Result struct {
	Decision Decision
	Target   string
}

// Snapshot はセッションのある時点の状態を表す。
type Snapshot struct {
	Identity *model.Identity
	Loading  bool
}

// SignedIn は既知のロールを持つIdentityがあるかを返す。
// 未知のロールは未サインインと同じ扱いになる。
func (s Snapshot) SignedIn() bool {
	return s.Identity != nil && s.Identity.Role.Valid()
}

// Guard はRegistryに基づいてアクセス判定を行う。
// 状態を持たないため並行に利用してよい。
type Guard struct {
	registry *roles.Registry
}

// New は新しいGuardを生成する。
func New(registry *roles.Registry) *Guard {
	return &Guard{registry: registry}
}

// Decide はパスとIdentityからアクセス判定を行う。
// 未知のロールを持つIdentityは未サインインとして扱う。
func (g *Guard) Decide(p string, id *model.Identity) Result {
	if id == nil || !id.Role.Valid() {
		return Result{Decision: RedirectToLogin, Target: roles.LoginPath}
	}

	clean := roles.CleanPath(p)
	if clean == roles.LoginPath {
		return g.toRoleDefault(id.Role)
	}
	if g.registry.Permits(id.Role, clean) {
		return Result{Decision: Allow}
	}
	return g.toRoleDefault(id.Role)
}

// Access はセッションの状態を踏まえて判定を行う。
// セッションが解決中の場合は判定せずにfalseを返す。呼び出し側は待機状態を表示すること。
func (g *Guard) Access(s Snapshot, p string) (Result, bool) {
	if s.Loading {
		return Result{}, false
	}
	return g.Decide(p, s.Identity), true
}

func (g *Guard) toRoleDefault(role model.Role) Result {
	return Result{Decision: RedirectToRoleDefault, Target: g.registry.DefaultPathFor(role)}
}
