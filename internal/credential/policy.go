package credential

import "time"

// Default refresh intervals. They are rate-limit workarounds for the
// upstream pages, not protocol constants.
const (
	DefaultForceInterval = 5 * time.Second
	DefaultSoftInterval  = 5 * time.Minute
	DefaultMaxAge        = 3 * time.Hour
)

// Policy controls when a cached credential is refreshed.
type Policy struct {
	// ForceInterval is the minimum time between forced refreshes, and
	// between attempts while no credential is cached.
	ForceInterval time.Duration
	// SoftInterval is the minimum time between refreshes triggered by a
	// suspicious (empty or unauthenticated looking) result.
	SoftInterval time.Duration
	// MaxAge makes a refresh mandatory once the credential is older.
	MaxAge time.Duration
}

// DefaultPolicy returns the default refresh policy.
func DefaultPolicy() Policy {
	return Policy{
		ForceInterval: DefaultForceInterval,
		SoftInterval:  DefaultSoftInterval,
		MaxAge:        DefaultMaxAge,
	}
}

// Merge returns p with zero fields taken from base.
func (p Policy) Merge(base Policy) Policy {
	if p.ForceInterval <= 0 {
		p.ForceInterval = base.ForceInterval
	}
	if p.SoftInterval <= 0 {
		p.SoftInterval = base.SoftInterval
	}
	if p.MaxAge <= 0 {
		p.MaxAge = base.MaxAge
	}
	return p
}

// Reason says why a caller wants a credential.
type Reason int

const (
	// ReasonNone returns the cached credential unless it is missing or too old.
	ReasonNone Reason = iota
	// ReasonSoft asks for a refresh because a result looked unauthenticated.
	ReasonSoft
	// ReasonForce asks for a refresh because the backend reported expiry.
	ReasonForce
)

func (r Reason) String() string {
	switch r {
	case ReasonSoft:
		return "soft"
	case ReasonForce:
		return "force"
	default:
		return "none"
	}
}

// needsRefresh applies the policy to the entry state at now.
func (p Policy) needsRefresh(e *entry, reason Reason, now time.Time) bool {
	sinceAttempt := now.Sub(e.lastAttempt)
	if e.lastAttempt.IsZero() {
		sinceAttempt = time.Duration(1<<63 - 1)
	}

	if e.cred == nil {
		return sinceAttempt > p.ForceInterval
	}
	if now.Sub(e.cred.IssuedAt) > p.MaxAge && sinceAttempt > p.ForceInterval {
		return true
	}

	switch reason {
	case ReasonForce:
		return sinceAttempt > p.ForceInterval
	case ReasonSoft:
		return sinceAttempt > p.SoftInterval
	}
	return false
}
