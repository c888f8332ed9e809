package roles

import "github.com/hitoshi/churchdash/internal/model"

// Default は組み込みのロール定義からRegistryを生成する。
// パスはロールごとに接頭辞（/pastor/... など）を持つ。
func Default() *Registry {
	return NewRegistry(DefaultProfiles(), ProfilePath)
}

// DefaultProfiles は組み込みのロール定義を返す。
func DefaultProfiles() []model.RoleProfile {
	return []model.RoleProfile{
		{
			Role:        model.RolePastor,
			DefaultPath: "/pastor/dashboard",
			Navigation: []model.NavigationEntry{
				{LabelKey: "nav.dashboard", Path: "/pastor/dashboard", Icon: model.IconDashboard},
				{LabelKey: "nav.users", Path: "/pastor/users", Icon: model.IconUsers},
				{LabelKey: "nav.folders", Path: "/pastor/folders", Icon: model.IconFolder},
				{LabelKey: "nav.pd_summary", Path: "/pastor/pd-summary", Icon: model.IconFileText},
				{LabelKey: "nav.calendar", Path: "/pastor/calendar", Icon: model.IconCalendar},
				{LabelKey: "nav.tasks", Path: "/pastor/tasks", Icon: model.IconTasks},
				{LabelKey: "nav.programs", Path: "/pastor/programs", Icon: model.IconPrograms},
				{LabelKey: "nav.attendance", Path: "/pastor/attendance", Icon: model.IconAttendance},
				{LabelKey: "nav.souls_won", Path: "/pastor/souls-won", Icon: model.IconHeart},
				{LabelKey: "nav.follow_ups", Path: "/pastor/follow-ups", Icon: model.IconFollowUp},
				{LabelKey: "nav.department_reports", Path: "/pastor/department-reports", Icon: model.IconReport},
				{LabelKey: "nav.notices", Path: "/pastor/notices", Icon: model.IconBell},
				{LabelKey: "nav.excuses", Path: "/pastor/excuses", Icon: model.IconExcuse},
				{LabelKey: "nav.permissions", Path: "/pastor/permissions", Icon: model.IconShield},
				{LabelKey: "nav.subscription", Path: "/pastor/subscription", Icon: model.IconCard},
				{LabelKey: "nav.history", Path: "/pastor/history", Icon: model.IconHistory},
				{LabelKey: "nav.profile", Path: "/pastor/profile", Icon: model.IconProfile},
				{LabelKey: "nav.settings", Path: "/pastor/settings", Icon: model.IconSettings},
			},
		},
		{
			Role:        model.RoleWorker,
			DefaultPath: "/worker/dashboard",
			Navigation: []model.NavigationEntry{
				{LabelKey: "nav.dashboard", Path: "/worker/dashboard", Icon: model.IconDashboard},
				{LabelKey: "nav.folders", Path: "/worker/folders", Icon: model.IconFolder},
				{LabelKey: "nav.pd_summary", Path: "/worker/pd-summary", Icon: model.IconFileText},
				{LabelKey: "nav.calendar", Path: "/worker/calendar", Icon: model.IconCalendar},
				{LabelKey: "nav.tasks", Path: "/worker/tasks", Icon: model.IconTasks},
				{LabelKey: "nav.programs", Path: "/worker/programs", Icon: model.IconPrograms},
				{LabelKey: "nav.attendance", Path: "/worker/attendance", Icon: model.IconAttendance},
				{LabelKey: "nav.souls_won", Path: "/worker/souls-won", Icon: model.IconHeart},
				{LabelKey: "nav.follow_ups", Path: "/worker/follow-ups", Icon: model.IconFollowUp},
				{LabelKey: "nav.department_reports", Path: "/worker/department-reports", Icon: model.IconReport},
				{LabelKey: "nav.notices", Path: "/worker/notices", Icon: model.IconBell},
				{LabelKey: "nav.profile", Path: "/worker/profile", Icon: model.IconProfile},
			},
		},
		{
			Role:        model.RoleMember,
			DefaultPath: "/member/dashboard",
			Navigation: []model.NavigationEntry{
				{LabelKey: "nav.dashboard", Path: "/member/dashboard", Icon: model.IconDashboard},
				{LabelKey: "nav.events", Path: "/member/events", Icon: model.IconCalendar},
				{LabelKey: "nav.programs", Path: "/member/programs", Icon: model.IconPrograms},
				{LabelKey: "nav.notices", Path: "/member/notices", Icon: model.IconBell},
				{LabelKey: "nav.my_excuses", Path: "/member/excuses", Icon: model.IconExcuse},
				{LabelKey: "nav.profile", Path: "/member/profile", Icon: model.IconProfile},
			},
		},
		{
			Role:        model.RoleNewcomer,
			DefaultPath: "/newcomer/dashboard",
			Navigation: []model.NavigationEntry{
				{LabelKey: "nav.dashboard", Path: "/newcomer/dashboard", Icon: model.IconDashboard},
				{LabelKey: "nav.welcome", Path: "/newcomer/welcome", Icon: model.IconWelcome},
			},
		},
	}
}
