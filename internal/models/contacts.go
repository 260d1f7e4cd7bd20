package models

import (
	"sort"

	"github.com/desertthunder/rostersync/internal/shared"
)

// Contact is an addressable person. Email is the identity key and is always normalized.
type Contact struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Attributes returns the destination attribute payload for c.
func (c Contact) Attributes() ContactAttributes {
	return ContactAttributes{FirstName: c.FirstName, LastName: c.LastName}
}

// DisplayName joins first and last name, trimming the gap when either is missing.
func (c Contact) DisplayName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// EmailSet is a set of normalized email addresses.
type EmailSet map[string]struct{}

// NewEmailSet builds a set from emails, normalizing each and dropping blanks.
func NewEmailSet(emails ...string) EmailSet {
	s := make(EmailSet, len(emails))
	for _, e := range emails {
		s.Add(e)
	}
	return s
}

// Add normalizes email and inserts it. It reports whether the set grew.
func (s EmailSet) Add(email string) bool {
	key := shared.NormalizeEmail(email)
	if key == "" {
		return false
	}
	if _, ok := s[key]; ok {
		return false
	}
	s[key] = struct{}{}
	return true
}

// Has reports whether email, after normalization, is in the set.
func (s EmailSet) Has(email string) bool {
	_, ok := s[shared.NormalizeEmail(email)]
	return ok
}

// Len returns the number of addresses in the set.
func (s EmailSet) Len() int { return len(s) }

// Sorted returns the addresses in lexical order.
func (s EmailSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold the same addresses.
func (s EmailSet) Equal(other EmailSet) bool {
	if len(s) != len(other) {
		return false
	}
	for e := range s {
		if _, ok := other[e]; !ok {
			return false
		}
	}
	return true
}

// MemberSet is the deduplicated desired state of a list.
//
// The first contact seen for an email wins; later duplicates are dropped.
// Iteration follows first-seen order.
type MemberSet struct {
	byEmail map[string]Contact
	order   []string
}

// NewMemberSet returns an empty [MemberSet].
func NewMemberSet() *MemberSet {
	return &MemberSet{byEmail: make(map[string]Contact)}
}

// Add normalizes the contact's email and inserts it.
// It reports false when the email is blank or already present.
func (m *MemberSet) Add(c Contact) bool {
	c.Email = shared.NormalizeEmail(c.Email)
	if c.Email == "" {
		return false
	}
	if _, ok := m.byEmail[c.Email]; ok {
		return false
	}
	m.byEmail[c.Email] = c
	m.order = append(m.order, c.Email)
	return true
}

// Get returns the contact stored for email.
func (m *MemberSet) Get(email string) (Contact, bool) {
	c, ok := m.byEmail[shared.NormalizeEmail(email)]
	return c, ok
}

// Len returns the number of contacts.
func (m *MemberSet) Len() int { return len(m.order) }

// Contacts returns the contacts in first-seen order.
func (m *MemberSet) Contacts() []Contact {
	out := make([]Contact, 0, len(m.order))
	for _, e := range m.order {
		out = append(out, m.byEmail[e])
	}
	return out
}

// Emails returns the identity keys as an [EmailSet].
func (m *MemberSet) Emails() EmailSet {
	s := make(EmailSet, len(m.order))
	for _, e := range m.order {
		s[e] = struct{}{}
	}
	return s
}
