// Package roles はロールごとのメニュー構成と既定の遷移先を提供する。
// 定義はビルド時に固定され、実行時に変化しない。
package roles

import (
	"fmt"
	"path"
	"strings"

	"github.com/hitoshi/churchdash/internal/model"
)

const (
	// LoginPath はサインイン画面のパス。
	LoginPath = "/login"
	// ProfilePath はロールに依存しない自分のプロフィール画面のパス。
	ProfilePath = "/profile"
)

// Registry はロールからUI設定への静的な対応表。
// 生成後は読み取り専用のため、同期なしで並行に参照してよい。
type Registry struct {
	profiles  map[model.Role]model.RoleProfile
	shared    []string
	permitted map[model.Role]map[string]struct{}
}

// NewRegistry はRoleProfileの一覧とロール共通パスからRegistryを生成する。
// 同じロールが複数回渡された場合は後のものが優先される。
func NewRegistry(profiles []model.RoleProfile, shared ...string) *Registry {
	r := &Registry{
		profiles:  make(map[model.Role]model.RoleProfile, len(profiles)),
		permitted: make(map[model.Role]map[string]struct{}, len(profiles)),
	}
	for _, p := range shared {
		r.shared = append(r.shared, CleanPath(p))
	}

	for _, p := range profiles {
		entries := make([]model.NavigationEntry, len(p.Navigation))
		copy(entries, p.Navigation)
		p.Navigation = entries
		r.profiles[p.Role] = p

		set := make(map[string]struct{}, len(entries)+len(r.shared)+1)
		for _, e := range entries {
			set[CleanPath(e.Path)] = struct{}{}
		}
		if p.DefaultPath != "" {
			set[CleanPath(p.DefaultPath)] = struct{}{}
		}
		for _, s := range r.shared {
			set[s] = struct{}{}
		}
		r.permitted[p.Role] = set
	}

	return r
}

// NavigationFor はロールのメニュー項目を表示順で返す。
// 未登録のロールには空のスライスを返す。
func (r *Registry) NavigationFor(role model.Role) []model.NavigationEntry {
	p, ok := r.profiles[role]
	if !ok {
		return []model.NavigationEntry{}
	}
	entries := make([]model.NavigationEntry, len(p.Navigation))
	copy(entries, p.Navigation)
	return entries
}

// DefaultPathFor はロールの既定遷移先を返す。
// 未登録または既定パスが空の場合はサインイン画面にフォールバックする。
func (r *Registry) DefaultPathFor(role model.Role) string {
	p, ok := r.profiles[role]
	if !ok || p.DefaultPath == "" {
		return LoginPath
	}
	return p.DefaultPath
}

// Permits はロールが指定パスにアクセスできるかを返す。
// 許可されるのはメニューのパス、既定パス、ロール共通パスのいずれか。
func (r *Registry) Permits(role model.Role, p string) bool {
	set, ok := r.permitted[role]
	if !ok {
		return false
	}
	_, ok = set[CleanPath(p)]
	return ok
}

// SharedPaths はロール共通パスを返す。
func (r *Registry) SharedPaths() []string {
	out := make([]string, len(r.shared))
	copy(out, r.shared)
	return out
}

// Validate は全ロールについて設定が揃っているかを検証する。
// 不備がある場合はCONFIGURATION_DEFECTのAPIErrorを返す。
func (r *Registry) Validate() error {
	var problems []string
	for _, role := range model.Roles() {
		p, ok := r.profiles[role]
		if !ok {
			problems = append(problems, fmt.Sprintf("role %q has no profile", role))
			continue
		}
		if len(p.Navigation) == 0 {
			problems = append(problems, fmt.Sprintf("role %q has no navigation entries", role))
		}
		if p.DefaultPath == "" {
			problems = append(problems, fmt.Sprintf("role %q has no default path", role))
			continue
		}
		if CleanPath(p.DefaultPath) == LoginPath {
			problems = append(problems, fmt.Sprintf("default path of role %q must not be the login path", role))
		}
	}
	for role := range r.profiles {
		if !role.Valid() {
			problems = append(problems, fmt.Sprintf("unknown role %q is registered", role))
		}
	}
	if len(problems) > 0 {
		return model.NewConfigurationDefectError(problems)
	}
	return nil
}

// CleanPath はパスを比較用に正規化する。
// 先頭のスラッシュを補い、末尾のスラッシュや "." ".." を除去する。
func CleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
