// Package faction maps a member's roles to the faction they play for.
//
// Factions are an ordered list. A member who holds the roles of several
// factions belongs to the first one in that list, so attribution never
// depends on the order the platform reports roles in.
package faction

import (
	"strings"
)

// Faction identifies a team by its role name and storage key
type Faction struct {
	Name string
	Key  string
}

// KeyFor derives the storage key of a faction name ("Laughing Meeks" -> "Laughing_Meeks")
func KeyFor(name string) string {
	return strings.Join(strings.Fields(name), "_")
}

// NameFor turns a storage key back into a display name
func NameFor(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}

// Resolver resolves members to factions
type Resolver struct {
	factions []Faction
}

// NewResolver creates a resolver over the given role names, keeping their order.
// Blank and duplicate names are ignored.
func NewResolver(names []string) *Resolver {
	seen := make(map[string]bool)
	r := &Resolver{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		r.factions = append(r.factions, Faction{Name: name, Key: KeyFor(name)})
	}
	return r
}

// Factions returns the factions in priority order
func (r *Resolver) Factions() []Faction {
	return append([]Faction(nil), r.factions...)
}

// Keys returns the storage keys in priority order
func (r *Resolver) Keys() []string {
	keys := make([]string, len(r.factions))
	for i, f := range r.factions {
		keys[i] = f.Key
	}
	return keys
}

// Resolve returns the first faction whose role the member holds
func (r *Resolver) Resolve(roleNames []string) (Faction, bool) {
	held := make(map[string]bool, len(roleNames))
	for _, name := range roleNames {
		held[name] = true
	}
	for _, f := range r.factions {
		if held[f.Name] {
			return f, true
		}
	}
	return Faction{}, false
}

// ByKey looks a faction up by its storage key
func (r *Resolver) ByKey(key string) (Faction, bool) {
	for _, f := range r.factions {
		if f.Key == key {
			return f, true
		}
	}
	return Faction{}, false
}
