// Package guard decides whether an identity may open a role-scoped route.
//
// The guard is a navigation convenience: it redirects users to the part of
// the application that matches their role.  Ownership is enforced again by
// the repository queries, so a permissive guard never exposes data.
package guard

import (
	"strings"

	"github.com/iliyamo/script-marketplace/internal/model"
)

// Rule maps a path prefix to the roles allowed under it.
type Rule struct {
	Prefix string       `yaml:"prefix"`
	Roles  []model.Role `yaml:"roles"`
}

// Identity is the acting user as seen by the guard.
type Identity struct {
	Authenticated bool
	Role          model.Role
}

// Outcome is the kind of decision returned by Decide.
type Outcome int

const (
	Allow Outcome = iota
	Redirect
	Deny
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	}
	return "deny"
}

// Decision is the guard's answer for one request.  Target is set only when
// Outcome is Redirect.
type Decision struct {
	Outcome Outcome
	Target  string
}

// Config holds everything the guard needs besides the rules.
type Config struct {
	// Roots maps a role to its landing page.
	Roots map[model.Role]string
	// Fallback is used when the role has no root.  Empty means deny.
	Fallback string
	// SignIn is where unauthenticated users are sent.  Empty means deny.
	SignIn string
}

// Guard evaluates an ordered rule list.  It is immutable after New and
// safe for concurrent use.
type Guard struct {
	rules []Rule
	cfg   Config
}

// DefaultRules guard the role dashboards and role-only pages.
func DefaultRules() []Rule {
	return []Rule{
		{Prefix: "/dashboard/writer", Roles: []model.Role{model.RoleWriter}},
		{Prefix: "/dashboard/producer", Roles: []model.Role{model.RoleProducer}},
		{Prefix: "/scripts/new", Roles: []model.Role{model.RoleWriter}},
		{Prefix: "/listings/new", Roles: []model.Role{model.RoleProducer}},
		{Prefix: "/messages", Roles: []model.Role{model.RoleWriter, model.RoleProducer}},
	}
}

// DefaultConfig sends each role to its dashboard, role-less users to
// onboarding and anonymous users to the sign-in page.
func DefaultConfig() Config {
	return Config{
		Roots: map[model.Role]string{
			model.RoleWriter:   "/dashboard/writer",
			model.RoleProducer: "/dashboard/producer",
		},
		Fallback: "/onboarding",
		SignIn:   "/signin",
	}
}

// New returns a guard over a copy of rules.
func New(rules []Rule, cfg Config) *Guard {
	rs := make([]Rule, 0, len(rules))
	for _, r := range rules {
		p := normalize(r.Prefix)
		if p == "" {
			continue
		}
		roles := make([]model.Role, len(r.Roles))
		copy(roles, r.Roles)
		rs = append(rs, Rule{Prefix: p, Roles: roles})
	}
	return &Guard{rules: rs, cfg: cfg}
}

// Match returns the first rule covering path.
func (g *Guard) Match(path string) (Rule, bool) {
	p := normalize(path)
	for _, r := range g.rules {
		if matchPrefix(p, r.Prefix) {
			return r, true
		}
	}
	return Rule{}, false
}

// Decide returns the decision for id requesting path.
func (g *Guard) Decide(path string, id Identity) Decision {
	rule, ok := g.Match(path)
	if !ok {
		return Decision{Outcome: Allow}
	}
	if !id.Authenticated {
		return redirectOrDeny(g.cfg.SignIn)
	}
	role := model.ParseRole(string(id.Role))
	if role.Valid() && containsRole(rule.Roles, role) {
		return Decision{Outcome: Allow}
	}
	if root, ok := g.cfg.Roots[role]; ok && role.Valid() && root != "" {
		return Decision{Outcome: Redirect, Target: root}
	}
	return redirectOrDeny(g.cfg.Fallback)
}

func redirectOrDeny(target string) Decision {
	if target == "" {
		return Decision{Outcome: Deny}
	}
	return Decision{Outcome: Redirect, Target: target}
}

// matchPrefix is true for an exact match or when the next character after
// the prefix is a path separator, so /a/b matches /a/b/c but not /a/bc.
func matchPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix) && path[len(prefix)] == '/'
}

func normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func containsRole(roles []model.Role, r model.Role) bool {
	for _, x := range roles {
		if model.ParseRole(string(x)) == r {
			return true
		}
	}
	return false
}
