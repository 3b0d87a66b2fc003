package auth

// Allowlist restricts access to a fixed set of user ids. It is built once
// from configuration at startup and read-only afterwards.
type Allowlist struct {
	ids map[int64]struct{}
}

// NewAllowlist builds an allow-list. An empty or nil id set means the
// list is disabled and every verified identity is allowed.
func NewAllowlist(ids []int64) *Allowlist {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &Allowlist{ids: set}
}

// Allowed reports whether the id may use the service.
func (a *Allowlist) Allowed(id int64) bool {
	if len(a.ids) == 0 {
		return true
	}
	_, ok := a.ids[id]
	return ok
}

// Enabled reports whether a finite set of ids is configured.
func (a *Allowlist) Enabled() bool {
	return len(a.ids) > 0
}

// Size returns the number of configured ids.
func (a *Allowlist) Size() int {
	return len(a.ids)
}
