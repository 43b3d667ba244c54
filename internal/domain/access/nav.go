package access

import "github.com/target/learnhub/internal/domain/auth"

// NavItem is a sidebar entry.
type NavItem struct {
	Name string
	Href string
	Icon string
}

var (
	adminNav = []NavItem{
		{Name: "Dashboard", Href: "/admin", Icon: "home"},
		{Name: "Batches", Href: "/admin/batches", Icon: "users"},
		{Name: "Courses", Href: "/admin/courses", Icon: "book"},
		{Name: "Users", Href: "/admin/users", Icon: "users"},
		{Name: "Assessments", Href: "/admin/assessments", Icon: "clipboard"},
		{Name: "Reports", Href: "/admin/reports", Icon: "chart"},
		{Name: "Documents", Href: "/admin/documents", Icon: "document"},
		{Name: "Notifications", Href: "/admin/notifications", Icon: "bell"},
		{Name: "Settings", Href: "/admin/settings", Icon: "cog"},
	}
	trainerNav = []NavItem{
		{Name: "Dashboard", Href: "/trainer", Icon: "home"},
		{Name: "My Batches", Href: "/trainer/batches", Icon: "users"},
		{Name: "Assignments", Href: "/trainer/assignments", Icon: "clipboard"},
		{Name: "Attendance", Href: "/trainer/attendance", Icon: "calendar"},
		{Name: "Assessments", Href: "/trainer/assessments", Icon: "academic"},
		{Name: "Documents", Href: "/trainer/documents", Icon: "document"},
		{Name: "Reports", Href: "/trainer/reports", Icon: "chart"},
	}
	learnerNav = []NavItem{
		{Name: "Dashboard", Href: "/learner", Icon: "home"},
		{Name: "My Courses", Href: "/learner/courses", Icon: "book"},
		{Name: "Assignments", Href: "/learner/assignments", Icon: "clipboard"},
		{Name: "Assessments", Href: "/learner/assessments", Icon: "academic"},
		{Name: "Progress", Href: "/learner/progress", Icon: "chart"},
		{Name: "Documents", Href: "/learner/documents", Icon: "document"},
		{Name: "Certificates", Href: "/learner/certificates", Icon: "academic"},
	}
)

// NavItems returns the sidebar menu for role. The slice is a fresh copy.
func NavItems(role auth.Role) ([]NavItem, error) {
	var items []NavItem
	switch role {
	case auth.RoleAdmin:
		items = adminNav
	case auth.RoleTrainer:
		items = trainerNav
	case auth.RoleLearner:
		items = learnerNav
	default:
		return nil, &auth.UnknownRoleError{Value: string(role)}
	}
	return append([]NavItem(nil), items...), nil
}

// NavSection returns the item whose Href matches p exactly, if any.
func NavSection(role auth.Role, p string) (NavItem, bool) {
	items, err := NavItems(role)
	if err != nil {
		return NavItem{}, false
	}
	for _, it := range items {
		if it.Href == p {
			return it, true
		}
	}
	return NavItem{}, false
}
