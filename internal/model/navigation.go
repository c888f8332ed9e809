package model

// Icon はメニュー項目に表示する機能アイコンのタグ。
// フロントエンドのアイコンセット（lucide）の名前と対応する。
type Icon string

const (
	IconDashboard  Icon = "layout-dashboard"
	IconUsers      Icon = "users"
	IconFolder     Icon = "folder-open"
	IconFileText   Icon = "file-text"
	IconCalendar   Icon = "calendar"
	IconTasks      Icon = "check-square"
	IconPrograms   Icon = "users-round"
	IconAttendance Icon = "user-check"
	IconHeart      Icon = "heart"
	IconFollowUp   Icon = "user-plus"
	IconReport     Icon = "file-bar-chart"
	IconBell       Icon = "bell"
	IconExcuse     Icon = "user-x"
	IconShield     Icon = "shield"
	IconCard       Icon = "credit-card"
	IconHistory    Icon = "history"
	IconProfile    Icon = "user"
	IconSettings   Icon = "settings"
	IconWelcome    Icon = "church"
)

// NavigationEntry はメニューの1項目を表す。
type NavigationEntry struct {
	LabelKey string // i18nキー
	Path     string
	Icon     Icon
}

// RoleProfile はロールごとの静的なUI設定を表す。
// Navigationの順序はそのままメニューの表示順になる。
type RoleProfile struct {
	Role        Role
	Navigation  []NavigationEntry
	DefaultPath string
}
