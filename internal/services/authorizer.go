package services

import (
	"strings"
	"sync"

	"github.com/avissapr/reporthub/internal/config"
	"github.com/avissapr/reporthub/internal/models"
)

// Authorizer answers the two permission questions ReportHub asks.
type Authorizer interface {
	IsAdmin(user *models.User) bool
	CanCreateDirective(user *models.User) bool
}

// NewAuthorizer returns the identity provider selected by configuration.
func NewAuthorizer(ic config.IdentityConfig) Authorizer {
	if ic.Provider == config.ProviderAllowList {
		return NewAllowListAuthorizer(ic.Admins, ic.DirectiveAuthors)
	}
	return RoleAuthorizer{}
}

// RoleAuthorizer reads permissions from the account record.
type RoleAuthorizer struct{}

// IsAdmin reports whether the account has the admin role.
func (RoleAuthorizer) IsAdmin(u *models.User) bool {
	return u != nil && u.Role == models.RoleAdmin
}

// CanCreateDirective reports whether the account is an admin or carries the
// directive flag.
func (a RoleAuthorizer) CanCreateDirective(u *models.User) bool {
	return u != nil && (a.IsAdmin(u) || u.CanCreateDirectives)
}

// AllowListAuthorizer reads permissions from two configured lists. An account
// matches a list when its email or its name is on it, ignoring case. The
// account's own role and flag are not consulted.
//
// The lists can be replaced at runtime by SetLists when the config file changes.
type AllowListAuthorizer struct {
	mu      sync.RWMutex
	admins  map[string]struct{}
	authors map[string]struct{}
}

// NewAllowListAuthorizer builds an authorizer from admin and directive-author lists.
func NewAllowListAuthorizer(admins, authors []string) *AllowListAuthorizer {
	a := &AllowListAuthorizer{}
	a.SetLists(admins, authors)
	return a
}

// SetLists replaces both lists.
func (a *AllowListAuthorizer) SetLists(admins, authors []string) {
	ad, au := toSet(admins), toSet(authors)

	a.mu.Lock()
	a.admins, a.authors = ad, au
	a.mu.Unlock()
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			set[item] = struct{}{}
		}
	}
	return set
}

func matches(set map[string]struct{}, u *models.User) bool {
	for _, id := range []string{u.Email, u.Name} {
		if id = strings.ToLower(strings.TrimSpace(id)); id == "" {
			continue
		}
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the account is on the admin list.
func (a *AllowListAuthorizer) IsAdmin(u *models.User) bool {
	if u == nil {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return matches(a.admins, u)
}

// CanCreateDirective reports whether the account is on either list.
func (a *AllowListAuthorizer) CanCreateDirective(u *models.User) bool {
	if u == nil {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return matches(a.admins, u) || matches(a.authors, u)
}
