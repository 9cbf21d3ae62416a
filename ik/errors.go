package ik

import (
	"errors"
	"fmt"
)

// ErrInvalidChain is matched by every *InvalidChainError through errors.Is.
var ErrInvalidChain = errors.New("invalid chain")

// InvalidChainError reports a chain that cannot be bound: fewer than two
// joints, or two consecutive joints sharing a bind position.
type InvalidChainError struct {
	Joints  int
	Segment int // -1 when the chain is too short
	Reason  string
}

func (e *InvalidChainError) Error() string {
	if e.Segment < 0 {
		return fmt.Sprintf("invalid chain: %s (%d joints)", e.Reason, e.Joints)
	}
	return fmt.Sprintf("invalid chain: %s at segment %d (%d joints)", e.Reason, e.Segment, e.Joints)
}

func (e *InvalidChainError) Is(target error) bool {
	return target == ErrInvalidChain
}
