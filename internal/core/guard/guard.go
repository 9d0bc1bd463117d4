// Package guard decides, for every navigation, whether the dashboard shows the
// sign-in surface, redirects, or renders a view. Decisions are a pure function
// of the requested path, identity presence and the cached role; nothing here
// performs I/O.
//
// The cached role is only a hint for the user interface. Every privileged
// action is authorized again by the server.
package guard

import (
	"path"
	"strings"

	"github.com/rapidrecall/dashboard/internal/core/domain"
)

const (
	// PrivilegedPrefix marks routes reserved for administrators.
	PrivilegedPrefix = "/admin"
	// DefaultRoute is the non-privileged landing route.
	DefaultRoute = "/"
)

// Outcome is the kind of decision taken for a navigation.
type Outcome int

const (
	OutcomeSignIn Outcome = iota
	OutcomeRedirect
	OutcomeRender
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRedirect:
		return "redirect"
	case OutcomeRender:
		return "render"
	default:
		return "sign_in"
	}
}

// View names the screen rendered for a route.
type View string

const (
	ViewSignIn         View = "sign_in"
	ViewDashboard      View = "dashboard"
	ViewAdminDashboard View = "admin_dashboard"
	ViewDocuments      View = "documents"
	ViewRecalls        View = "recalls"
	ViewRecallDatabase View = "recall_database"
	ViewSettings       View = "settings"
	ViewUserManagement View = "user_management"
)

// Request is the input of a guard evaluation.
type Request struct {
	Path          string
	Authenticated bool
	Role          domain.Role
	RoleKnown     bool
}

// Decision is the result of a guard evaluation. Target is set for redirects,
// View for renders and sign-in.
type Decision struct {
	Outcome    Outcome
	Target     string
	View       View
	Privileged bool
}

type route struct {
	standard   View
	privileged View
}

var routes = map[string]route{
	"/":              {standard: ViewDashboard, privileged: ViewAdminDashboard},
	"/documents":     {standard: ViewDocuments, privileged: ViewDocuments},
	"/recalls":       {standard: ViewRecalls, privileged: ViewRecallDatabase},
	"/settings":      {standard: ViewSettings, privileged: ViewSettings},
	"/admin/users":   {privileged: ViewUserManagement},
	"/admin/recalls": {privileged: ViewRecallDatabase},
}

// Evaluate maps a navigation to a Decision.
func Evaluate(req Request) Decision {
	if !req.Authenticated {
		return Decision{Outcome: OutcomeSignIn, View: ViewSignIn}
	}

	p := Normalize(req.Path)
	admin := req.RoleKnown && req.Role.IsAdmin()

	if IsPrivileged(p) && !admin {
		return Decision{Outcome: OutcomeRedirect, Target: DefaultRoute}
	}

	rt, ok := routes[p]
	if !ok {
		return Decision{Outcome: OutcomeRedirect, Target: DefaultRoute}
	}

	switch {
	case admin:
		return Decision{Outcome: OutcomeRender, View: rt.privileged, Privileged: true}
	default:
		return Decision{Outcome: OutcomeRender, View: rt.standard}
	}
}

// IsPrivileged reports whether p lies under PrivilegedPrefix.
func IsPrivileged(p string) bool {
	p = Normalize(p)
	return p == PrivilegedPrefix || strings.HasPrefix(p, PrivilegedPrefix+"/")
}

// Normalize cleans a request path so that "/admin/../admin/users/" and
// "/admin/users" are judged alike.
func Normalize(p string) string {
	if p == "" {
		return DefaultRoute
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
