package identity

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"
	"strings"
)

var (
	ErrUserNotFound     = errors.New("unable to resolve user name to user id")
	ErrUserContainsNul  = errors.New("user name contains NUL")
	ErrGroupNotFound    = errors.New("unable to resolve group name to group id")
	ErrGroupContainsNul = errors.New("group name contains NUL")
)

// Unset marks an identity that was not configured. It is also the value
// fchown(2) treats as "leave unchanged".
const Unset = -1

// User names the account the daemon should run as, either by name or by
// numeric id.
type User struct {
	name  string
	id    uint32
	named bool
}

// UserName selects a user by login name.
func UserName(name string) User { return User{name: name, named: true} }

// UserID selects a user by numeric uid.
func UserID(uid uint32) User { return User{id: uid} }

func (u User) String() string {
	if u.named {
		return u.name
	}
	return strconv.FormatUint(uint64(u.id), 10)
}

// Group names the group the daemon should run as.
type Group struct {
	name  string
	id    uint32
	named bool
}

// GroupName selects a group by name.
func GroupName(name string) Group { return Group{name: name, named: true} }

// GroupID selects a group by numeric gid.
func GroupID(gid uint32) Group { return Group{id: gid} }

func (g Group) String() string {
	if g.named {
		return g.name
	}
	return strconv.FormatUint(uint64(g.id), 10)
}

// NameService maps user and group names to numeric ids.
type NameService interface {
	LookupUser(name string) (uint32, bool)
	LookupGroup(name string) (uint32, bool)
}

// System resolves names through the host's passwd and group databases.
type System struct{}

// LookupUser implements NameService.
func (System) LookupUser(name string) (uint32, bool) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, false
	}
	return parseID(u.Uid)
}

// LookupGroup implements NameService.
func (System) LookupGroup(name string) (uint32, bool) {
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, false
	}
	return parseID(g.Gid)
}

func parseID(value string) (uint32, bool) {
	id, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}

// Resolved holds the numeric ids the daemon drops to. Either field is Unset
// when the matching identity was not configured.
type Resolved struct {
	UID int
	GID int
}

// Configured reports whether at least one identity is set.
func (r Resolved) Configured() bool {
	return r.UID != Unset || r.GID != Unset
}

// Resolver turns configured identities into numeric ids.
type Resolver struct {
	names NameService
}

// NewResolver builds a resolver over names; nil selects System.
func NewResolver(names NameService) *Resolver {
	if names == nil {
		names = System{}
	}
	return &Resolver{names: names}
}

// ResolveUser returns the uid for u.
func (r *Resolver) ResolveUser(u User) (uint32, error) {
	if !u.named {
		return u.id, nil
	}
	if strings.IndexByte(u.name, 0) >= 0 {
		return 0, ErrUserContainsNul
	}
	uid, ok := r.names.LookupUser(u.name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUserNotFound, u.name)
	}
	return uid, nil
}

// ResolveGroup returns the gid for g.
func (r *Resolver) ResolveGroup(g Group) (uint32, error) {
	if !g.named {
		return g.id, nil
	}
	if strings.IndexByte(g.name, 0) >= 0 {
		return 0, ErrGroupContainsNul
	}
	gid, ok := r.names.LookupGroup(g.name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrGroupNotFound, g.name)
	}
	return gid, nil
}

// Resolve looks up the user and then the group exactly once. Nil arguments
// leave the matching field Unset.
func (r *Resolver) Resolve(u *User, g *Group) (Resolved, error) {
	out := Resolved{UID: Unset, GID: Unset}
	if u != nil {
		uid, err := r.ResolveUser(*u)
		if err != nil {
			return Resolved{}, err
		}
		out.UID = int(uid)
	}
	if g != nil {
		gid, err := r.ResolveGroup(*g)
		if err != nil {
			return Resolved{}, err
		}
		out.GID = int(gid)
	}
	return out, nil
}

// ParseUser interprets a configuration value as a numeric id when it is all
// digits and as a name otherwise.
func ParseUser(value string) User {
	if id, ok := parseID(value); ok {
		return UserID(id)
	}
	return UserName(value)
}

// ParseGroup is the group counterpart of ParseUser.
func ParseGroup(value string) Group {
	if id, ok := parseID(value); ok {
		return GroupID(id)
	}
	return GroupName(value)
}
