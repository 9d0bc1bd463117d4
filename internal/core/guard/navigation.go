package guard

import "github.com/rapidrecall/dashboard/internal/core/domain"

// NavItem is one sidebar entry.
type NavItem struct {
	Name   string `json:"name"`
	Href   string `json:"href"`
	Active bool   `json:"active,omitempty"`
}

var baseNavigation = []NavItem{
	{Name: "Dashboard", Href: "/"},
	{Name: "Documents", Href: "/documents"},
	{Name: "Recalls", Href: "/recalls"},
	{Name: "Settings", Href: "/settings"},
}

var adminNavigation = []NavItem{
	{Name: "Manage Users", Href: "/admin/users"},
}

// Navigation returns the sidebar for role, marking the entry matching current.
func Navigation(role domain.Role, current string) []NavItem {
	current = Normalize(current)
	items := make([]NavItem, 0, len(baseNavigation)+len(adminNavigation))
	items = append(items, baseNavigation...)
	switch role {
	case domain.RoleAdmin:
		items = append(items, adminNavigation...)
	case domain.RoleUser:
	}
	for i := range items {
		items[i].Active = items[i].Href == current
	}
	return items
}
