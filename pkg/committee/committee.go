package committee

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/crypto"
)

// Committee is the validator set authorized to attest, together with the
// number of distinct signatures required for agreement.
//
// A Committee is immutable after construction; a rotation produces a new one.
// All methods are safe for concurrent use.
type Committee struct {
	validators   []common.Address
	validatorSet map[common.Address]struct{}
	quorumSize   int
}

// NewCommittee deduplicates and sorts validators. The quorum size must be
// between 1 and the number of distinct validators.
func NewCommittee(validators []common.Address, quorumSize int) (*Committee, error) {
	set := make(map[common.Address]struct{}, len(validators))
	sorted := make([]common.Address, 0, len(validators))
	for _, v := range validators {
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		sorted = append(sorted, v)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	if quorumSize < 1 || quorumSize > len(sorted) {
		return nil, fmt.Errorf("%w: quorum size %d with %d validators", ErrInvalidCommittee, quorumSize, len(sorted))
	}

	return &Committee{
		validators:   sorted,
		validatorSet: set,
		quorumSize:   quorumSize,
	}, nil
}

// Validators returns a copy of the sorted validator addresses.
func (c *Committee) Validators() []common.Address {
	out := make([]common.Address, len(c.validators))
	copy(out, c.validators)
	return out
}

func (c *Committee) Size() int {
	return len(c.validators)
}

func (c *Committee) QuorumSize() int {
	return c.quorumSize
}

// FaultTolerance is the number of validators that may misbehave without
// preventing quorum.
func (c *Committee) FaultTolerance() int {
	return c.Size() - c.quorumSize
}

// FPlusOne is the smallest group guaranteed to include an honest validator.
func (c *Committee) FPlusOne() int {
	return c.FaultTolerance() + 1
}

func (c *Committee) IsInCommittee(address common.Address) bool {
	_, ok := c.validatorSet[address]
	return ok
}

// Equal reports whether both committees have the same validators and quorum.
func (c *Committee) Equal(other *Committee) bool {
	if other == nil || c.quorumSize != other.quorumSize || len(c.validators) != len(other.validators) {
		return false
	}
	for i := range c.validators {
		if c.validators[i] != other.validators[i] {
			return false
		}
	}
	return true
}

// ID is a digest of the quorum size and the sorted validators. Equal
// committees have the same ID.
func (c *Committee) ID() common.Hash {
	data := make([]byte, 8, 8+len(c.validators)*common.AddressLength)
	binary.BigEndian.PutUint64(data, uint64(c.quorumSize))
	for _, v := range c.validators {
		data = append(data, v[:]...)
	}
	return ethcrypto.Keccak256Hash(data)
}

// VerifyAttestation checks that att was produced by the committee member it
// names.
func (c *Committee) VerifyAttestation(att SignedValue) error {
	signer := att.SignerAddress()
	if !c.IsInCommittee(signer) {
		return fmt.Errorf("%w: %s", ErrNotInCommittee, signer.Hex())
	}

	recovered, err := crypto.RecoverAddress(att.SignedDigest(), att.SignatureValue())
	if err != nil {
		return err
	}
	if recovered != signer {
		return fmt.Errorf("%w: recovered %s, expected %s", ErrSignerMismatch, recovered.Hex(), signer.Hex())
	}
	return nil
}

// VerifyAggregateAttestation checks that signatures contain at least a quorum
// of distinct committee members over digest.
//
// Signatures that cannot be recovered, recover to a non-member, or repeat an
// already counted signer are skipped. Only the final count decides the
// outcome, so a certificate may carry extra or faulty signatures next to a
// valid quorum.
func (c *Committee) VerifyAggregateAttestation(digest common.Hash, signatures []crypto.Signature) error {
	if len(signatures) < c.quorumSize {
		return fmt.Errorf("%w: %d signatures, quorum is %d", ErrInsufficientQuorum, len(signatures), c.quorumSize)
	}

	recovered := make(map[common.Address]struct{}, len(signatures))
	for _, sig := range signatures {
		address, err := crypto.RecoverAddress(digest, sig)
		if err != nil {
			continue
		}
		if !c.IsInCommittee(address) {
			continue
		}
		recovered[address] = struct{}{}
	}

	if len(recovered) < c.quorumSize {
		return ErrInsufficientValidSignatures{Got: len(recovered), Needed: c.quorumSize}
	}
	return nil
}

// VerifyCertificate checks the aggregate signatures of cert over the digest of
// its certified value.
func (c *Committee) VerifyCertificate(cert CertifiedValue) error {
	return c.VerifyAggregateAttestation(cert.CertifiedDigest(), cert.AggregateSignatures())
}

type committeeJSON struct {
	Validators []common.Address `json:"validators"`
	QuorumSize int              `json:"quorum_size"`
}

func (c *Committee) MarshalJSON() ([]byte, error) {
	return json.Marshal(committeeJSON{
		Validators: c.validators,
		QuorumSize: c.quorumSize,
	})
}

// UnmarshalJSON rebuilds the committee through NewCommittee so decoded values
// satisfy the same invariants as constructed ones.
func (c *Committee) UnmarshalJSON(data []byte) error {
	var raw committeeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := NewCommittee(raw.Validators, raw.QuorumSize)
	if err != nil {
		return err
	}
	*c = *decoded
	return nil
}
