package user

import (
	"sort"
	"strings"

	"github.com/trezcool/classroom/core"
)

// AllowList is the static set of emails granted the admin role, whatever their stored role.
type AllowList struct {
	emails map[string]struct{}
}

// ParseAllowList parses a comma-separated list of emails. Entries are trimmed and lowercased; empty ones are dropped.
func ParseAllowList(raw string) AllowList {
	al := AllowList{emails: make(map[string]struct{})}
	for _, email := range strings.Split(raw, ",") {
		if email = core.CleanString(email, true /* lower */); email != "" {
			al.emails[email] = struct{}{}
		}
	}
	return al
}

func (al AllowList) Contains(email string) bool {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return false
	}
	_, ok := al.emails[email]
	return ok
}

// RoleFor returns the role of a user known only by email.
func (al AllowList) RoleFor(email string) Role {
	if al.Contains(email) {
		return RoleAdmin
	}
	return RoleStudent
}

// Apply overlays the allow-list on usr: admin if its email is allowed, its stored role otherwise.
// When usr has no email, the first non-empty fallback email is matched instead.
func (al AllowList) Apply(usr User, fallbackEmails ...string) User {
	email := usr.Email
	for _, fallback := range fallbackEmails {
		if email != "" {
			break
		}
		email = fallback
	}
	if al.Contains(email) {
		usr.Role = RoleAdmin
	}
	if !usr.Role.IsValid() {
		usr.Role = RoleStudent
	}
	return usr
}

func (al AllowList) Emails() []string {
	emails := make([]string, 0, len(al.emails))
	for email := range al.emails {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	return emails
}

func (al AllowList) Len() int {
	return len(al.emails)
}
