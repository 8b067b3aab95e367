package types

import (
	"time"

	"github.com/google/uuid"
)

// PolicyID represents a UUIDv7 policy identifier.
// String alias enables type safety while maintaining JSON string serialization.
type PolicyID string

// RuleID represents a UUIDv7 rule identifier.
// Lexicographic ordering of UUIDv7 strings is creation-time ordering, which
// keeps the comparator's final tie-break stable across restarts.
type RuleID string

// DecisionID represents a UUIDv7 decision identifier.
type DecisionID string

// NewPolicyID generates a UUIDv7 policy identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewPolicyID() PolicyID {
	return PolicyID(uuid.Must(uuid.NewV7()).String())
}

// NewRuleID generates a UUIDv7 rule identifier.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// NewDecisionID generates a UUIDv7 decision identifier.
func NewDecisionID() DecisionID {
	return DecisionID(uuid.Must(uuid.NewV7()).String())
}

// ParsePolicyID validates and converts a string to PolicyID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParsePolicyID(s string) (PolicyID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return PolicyID(s), nil
}

// ParseRuleID validates and converts a string to RuleID.
func ParseRuleID(s string) (RuleID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RuleID(s), nil
}

// DecisionIDTime extracts the timestamp embedded in a UUIDv7 decision ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func DecisionIDTime(id DecisionID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
