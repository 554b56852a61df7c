package auth

// Capability is a named permission attached to a user. Components test for
// capabilities instead of comparing role-name strings.
type Capability string

const (
	// CapAdmin covers administrative card management: creation, deletion,
	// activation and cross-user reads.
	CapAdmin Capability = "admin"
	// CapViewAudit grants read access to the audit trail.
	CapViewAudit Capability = "view_audit"
)

type CapabilitySet map[Capability]struct{}

func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, cap := range caps {
		set[cap] = struct{}{}
	}
	return set
}

func (s CapabilitySet) Has(cap Capability) bool {
	_, ok := s[cap]
	return ok
}

// Principal is the resolved acting identity handed to every service entry
// point.
type Principal struct {
	UserID       string
	Capabilities CapabilitySet
}

func (p Principal) Has(cap Capability) bool {
	return p.Capabilities.Has(cap)
}

// IsAdmin is shorthand for the most common check.
func (p Principal) IsAdmin() bool {
	return p.Has(CapAdmin)
}
