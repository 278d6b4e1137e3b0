package committee

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInCommittee is returned when an attestation is signed by an address
	// outside the committee.
	ErrNotInCommittee = errors.New("validator not in committee")

	// ErrSignerMismatch is returned when a signature recovers to an address
	// other than the claimed signer.
	ErrSignerMismatch = errors.New("signature does not match signer")

	// ErrInsufficientQuorum is returned before any signature is recovered when
	// fewer signatures than the quorum size were supplied.
	ErrInsufficientQuorum = errors.New("insufficient quorum")

	// ErrInvalidCommittee is returned for committees that can never reach quorum.
	ErrInvalidCommittee = errors.New("invalid committee")
)

// ErrInsufficientValidSignatures is returned when enough signatures were
// supplied but too few of them recovered to distinct committee members.
type ErrInsufficientValidSignatures struct {
	Got    int
	Needed int
}

func (e ErrInsufficientValidSignatures) Error() string {
	return fmt.Sprintf(
		"insufficient unique valid signatures from committee members: got %d, needed %d",
		e.Got, e.Needed,
	)
}

// IsInsufficientSignatures reports whether err is a quorum shortfall of either
// kind, as opposed to a malformed input.
func IsInsufficientSignatures(err error) bool {
	var target ErrInsufficientValidSignatures
	return errors.Is(err, ErrInsufficientQuorum) || errors.As(err, &target)
}
