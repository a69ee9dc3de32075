package routing

import "fmt"

// Registry is the static expert catalog: role-to-model bindings and the
// backup relation between experts. Built once at startup, read-only after.
type Registry struct {
	byRole  map[Role]string
	roleOf  map[string]Role
	backups map[string][]string
	order   []string
}

// NewRegistry builds a registry from role bindings. Every role must be bound
// to a non-empty, unique model identifier. overrides replaces the default
// backup chain for the given roles; a chain may not reference its own key.
func NewRegistry(bindings map[Role]string, overrides map[Role][]Role) (*Registry, error) {
	r := &Registry{
		byRole:  make(map[Role]string, len(bindings)),
		roleOf:  make(map[string]Role, len(bindings)),
		backups: make(map[string][]string),
	}

	for _, role := range Roles() {
		model, ok := bindings[role]
		if !ok || model == "" {
			return nil, fmt.Errorf("expert role %q has no model binding", role)
		}
		if prev, dup := r.roleOf[model]; dup {
			return nil, fmt.Errorf("model %q bound to both %q and %q", model, prev, role)
		}
		r.byRole[role] = model
		r.roleOf[model] = role
		r.order = append(r.order, model)
	}

	for _, role := range Roles() {
		chain := defaultBackups[role]
		if o, ok := overrides[role]; ok {
			chain = o
		}
		seen := map[Role]bool{}
		for _, b := range chain {
			if b == role {
				return nil, fmt.Errorf("backup chain for %q lists itself", role)
			}
			if seen[b] {
				return nil, fmt.Errorf("backup chain for %q lists %q twice", role, b)
			}
			seen[b] = true
			model, ok := r.byRole[b]
			if !ok {
				return nil, fmt.Errorf("backup chain for %q references unbound role %q", role, b)
			}
			key := r.byRole[role]
			r.backups[key] = append(r.backups[key], model)
		}
	}

	return r, nil
}

// AllExperts returns every expert model identifier in catalog enumeration
// order. The returned slice must not be mutated.
func (r *Registry) AllExperts() []string {
	return r.order
}

// BackupsOf returns the ordered backup experts for the given expert. Unknown
// experts yield an empty sequence.
func (r *Registry) BackupsOf(expert string) []string {
	return r.backups[expert]
}

// ExpertFor returns the model bound to a role.
func (r *Registry) ExpertFor(role Role) string {
	return r.byRole[role]
}

// RoleOf returns the role an expert is bound to, if any.
func (r *Registry) RoleOf(expert string) (Role, bool) {
	role, ok := r.roleOf[expert]
	return role, ok
}

// Fallback returns the designated last-resort expert.
func (r *Registry) Fallback() string {
	return r.byRole[RoleFallback]
}
