// Package claim defines the permission vocabulary: (action, scope, resource)
// triples with a canonical string encoding and a total order over scopes.
//
// A claim grants one action on one resource at one scope. Roles aggregate
// claims; the resolver in the root package picks the most permissive scope
// among the claims that match a request.
package claim

import (
	"errors"
	"fmt"
	"strings"
)

// ResourceWildcard matches every resource when paired with ScopeAdmin
// and ActionAdmin (the superuser claim "admin:admin:*").
const ResourceWildcard = "*"

// Action identifies what a claim permits on its resource.
type Action string

const (
	// ActionAdmin implies every other action on the claim's resource.
	ActionAdmin Action = "admin"

	// ActionCreate permits creating the resource.
	ActionCreate Action = "create"

	// ActionRead permits reading the resource.
	ActionRead Action = "read"

	// ActionUpdate permits updating the resource.
	ActionUpdate Action = "update"

	// ActionEnable permits enabling the resource.
	ActionEnable Action = "enable"

	// ActionDisable permits disabling the resource.
	ActionDisable Action = "disable"

	// ActionExecute permits executing the resource.
	ActionExecute Action = "execute"

	// ActionDelete permits deleting the resource.
	ActionDelete Action = "delete"
)

// Scope is the breadth of a claim's applicability, ordered by
// permissiveness: admin ⊇ any ⊇ organisation ⊇ establishment ⊇ own.
type Scope string

const (
	// ScopeAdmin is unrestricted, cross-tenant access.
	ScopeAdmin Scope = "admin"

	// ScopeAny is access to all rows regardless of tenant.
	ScopeAny Scope = "any"

	// ScopeOrganisation restricts access to the caller's organisation.
	ScopeOrganisation Scope = "organisation"

	// ScopeEstablishment restricts access to the caller's establishment.
	ScopeEstablishment Scope = "establishment"

	// ScopeOwn restricts access to rows owned by the caller.
	ScopeOwn Scope = "own"
)

var (
	// ErrMalformed is returned when parsing a claim string fails.
	ErrMalformed = errors.New("claim: malformed claim")

	// ErrInvalidInput is returned when a claim-like value matches no
	// accepted shape.
	ErrInvalidInput = errors.New("claim: invalid claim input")

	// ErrDuplicate is returned when a claim set contains the same
	// (action, scope, resource) triple twice.
	ErrDuplicate = errors.New("claim: duplicate claim")
)

var validActions = map[Action]struct{}{
	ActionAdmin:   {},
	ActionCreate:  {},
	ActionRead:    {},
	ActionUpdate:  {},
	ActionEnable:  {},
	ActionDisable: {},
	ActionExecute: {},
	ActionDelete:  {},
}

var scopeRanks = map[Scope]int{
	ScopeOwn:           0,
	ScopeEstablishment: 1,
	ScopeOrganisation:  2,
	ScopeAny:           3,
	ScopeAdmin:         4,
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	_, ok := validActions[a]
	return ok
}

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	_, ok := scopeRanks[s]
	return ok
}

// Rank returns the scope's position in the permissiveness order:
// admin=4 > any=3 > organisation=2 > establishment=1 > own=0.
// Unknown scopes rank below own.
func (s Scope) Rank() int {
	r, ok := scopeRanks[s]
	if !ok {
		return -1
	}
	return r
}

// Claim is an immutable (action, scope, resource) permission triple.
// Equality is defined on the serialized form, which is bijective with
// the triple.
type Claim struct {
	Action   Action `json:"action"`
	Scope    Scope  `json:"scope"`
	Resource string `json:"resource"`
}

// New constructs a validated claim.
func New(action Action, scope Scope, resource string) (Claim, error) {
	c := Claim{Action: action, Scope: scope, Resource: resource}
	if err := c.Validate(); err != nil {
		return Claim{}, err
	}
	return c, nil
}

// MustNew is like New but panics on error. Use for hardcoded claims.
func MustNew(action Action, scope Scope, resource string) Claim {
	c, err := New(action, scope, resource)
	if err != nil {
		panic(fmt.Sprintf("claim: must new: %v", err))
	}
	return c
}

// Validate checks the triple's components.
func (c Claim) Validate() error {
	if !c.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrMalformed, string(c.Action))
	}
	if !c.Scope.Valid() {
		return fmt.Errorf("%w: unknown scope %q", ErrMalformed, string(c.Scope))
	}
	if c.Resource == "" {
		return fmt.Errorf("%w: empty resource", ErrMalformed)
	}
	return nil
}

// String returns the canonical serialized form "{action}:{scope}:{resource}".
func (c Claim) String() string {
	return string(c.Action) + ":" + string(c.Scope) + ":" + c.Resource
}

// IsWildcard reports whether the claim is the superuser claim that
// matches every resource.
func (c Claim) IsWildcard() bool {
	return c.Resource == ResourceWildcard && c.Scope == ScopeAdmin && c.Action == ActionAdmin
}

// Matches reports whether the claim applies to the requested action on
// the requested resource. The admin action implies all actions, and the
// wildcard claim matches everything.
func (c Claim) Matches(action Action, resource string) bool {
	if c.IsWildcard() {
		return true
	}
	if c.Resource != resource {
		return false
	}
	return c.Action == action || c.Action == ActionAdmin
}

// MarshalText implements encoding.TextMarshaler.
func (c Claim) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Claim) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Parse parses the canonical form "{action}:{scope}:{resource}" into a
// Claim. The resource segment may itself contain colons.
func Parse(s string) (Claim, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Claim{}, fmt.Errorf("%w: %q: want 3 segments", ErrMalformed, s)
	}
	c := Claim{
		Action:   Action(parts[0]),
		Scope:    Scope(parts[1]),
		Resource: parts[2],
	}
	if err := c.Validate(); err != nil {
		return Claim{}, err
	}
	return c, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Claim {
	c, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("claim: must parse %q: %v", s, err))
	}
	return c
}

// Normalize converts a claim-like value into a canonical Claim. Accepted
// shapes: a serialized string, a Claim or *Claim, or a positional
// [action, scope, resource] string slice. Anything else fails with
// ErrInvalidInput.
func Normalize(v any) (Claim, error) {
	switch x := v.(type) {
	case Claim:
		if err := x.Validate(); err != nil {
			return Claim{}, err
		}
		return x, nil
	case *Claim:
		if x == nil {
			return Claim{}, fmt.Errorf("%w: nil claim", ErrInvalidInput)
		}
		if err := x.Validate(); err != nil {
			return Claim{}, err
		}
		return *x, nil
	case string:
		return Parse(x)
	case []string:
		if len(x) != 3 {
			return Claim{}, fmt.Errorf("%w: positional form wants 3 elements, got %d", ErrInvalidInput, len(x))
		}
		c := Claim{Action: Action(x[0]), Scope: Scope(x[1]), Resource: x[2]}
		if err := c.Validate(); err != nil {
			return Claim{}, err
		}
		return c, nil
	default:
		return Claim{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidInput, v)
	}
}

// NormalizeAll normalizes a slice of claim-like values and rejects
// duplicate triples.
func NormalizeAll(values ...any) ([]Claim, error) {
	claims := make([]Claim, 0, len(values))
	for _, v := range values {
		c, err := Normalize(v)
		if err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	if err := ValidateSet(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateSet checks a claim set for validity and full-triple duplicates.
// Multiple scopes for the same (action, resource) pair may coexist; the
// resolver picks the most permissive one.
func ValidateSet(claims []Claim) error {
	seen := make(map[string]struct{}, len(claims))
	for _, c := range claims {
		if err := c.Validate(); err != nil {
			return err
		}
		key := c.String()
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicate, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}
