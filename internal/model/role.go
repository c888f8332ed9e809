package model

// Role は教会内のアクセスレベルを表す。
// 取りうる値は pastor、worker、member、newcomer の4つに限られる。
type Role string

const (
	// RolePastor は牧師。全画面にアクセスできる。
	RolePastor Role = "pastor"
	// RoleWorker は奉仕者。部署運営に関する画面にアクセスできる。
	RoleWorker Role = "worker"
	// RoleMember は教会員。閲覧系の画面にアクセスできる。
	RoleMember Role = "member"
	// RoleNewcomer は新来者。初回サインイン時のデフォルトロール。
	RoleNewcomer Role = "newcomer"
)

// Roles は定義済みの全ロールを権限の高い順に返す。
func Roles() []Role {
	return []Role{RolePastor, RoleWorker, RoleMember, RoleNewcomer}
}

// ParseRole は文字列をRoleに変換する。未知の値の場合はfalseを返す。
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// Valid はロールが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RolePastor, RoleWorker, RoleMember, RoleNewcomer:
		return true
	default:
		return false
	}
}

// String はロールの文字列表現を返す。
func (r Role) String() string {
	return string(r)
}
