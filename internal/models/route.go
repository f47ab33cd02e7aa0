package models

// RouteLayout is the shell a page renders inside.
type RouteLayout string

const (
	LayoutBare      RouteLayout = "bare"
	LayoutPublic    RouteLayout = "public"
	LayoutDashboard RouteLayout = "dashboard"
	LayoutSidebar   RouteLayout = "sidebar"
)

// Route maps a URL pattern to a page and its guard.
type Route struct {
	Path         string      `json:"path"`
	Page         string      `json:"page,omitempty"`
	Layout       RouteLayout `json:"layout,omitempty"`
	Protected    bool        `json:"protected"`
	RequiredRole UserRole    `json:"required_role,omitempty"`
	AllowedRoles []UserRole  `json:"allowed_roles,omitempty"`
	RedirectTo   string      `json:"redirect_to,omitempty"`
}

// GuardReason explains a guard decision.
type GuardReason string

const (
	GuardAllowed         GuardReason = "allowed"
	GuardRedirectRoute   GuardReason = "redirect_route"
	GuardUnauthenticated GuardReason = "unauthenticated"
	GuardRoleMismatch    GuardReason = "role_mismatch"
	GuardRoleNotAllowed  GuardReason = "role_not_allowed"
	GuardNoMatchingRoute GuardReason = "no_matching_route"
)

// GuardDecision is the result of resolving a path for a session.
type GuardDecision struct {
	Path     string            `json:"path"`
	Allowed  bool              `json:"allowed"`
	Redirect string            `json:"redirect,omitempty"`
	Reason   GuardReason       `json:"reason"`
	Route    *Route            `json:"route,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
}
