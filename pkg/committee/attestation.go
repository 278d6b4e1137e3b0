package committee

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/crypto"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/util"
)

// SignedValue is a single validator signature over a digest.
type SignedValue interface {
	SignerAddress() common.Address
	SignedDigest() common.Hash
	SignatureValue() crypto.Signature
}

// CertifiedValue is a digest together with the signatures claimed to certify it.
type CertifiedValue interface {
	CertifiedDigest() common.Hash
	AggregateSignatures() []crypto.Signature
}

// Attestation is a value signed by one validator over its hash.
type Attestation[T types.Hashable] struct {
	PublicKey common.Address   `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
	Attested  T                `json:"attested"`
}

// Attest signs value with signer.
func Attest[T types.Hashable](signer *crypto.Signer, value T) (Attestation[T], error) {
	sig, err := signer.SignHash(value.Hash())
	if err != nil {
		return Attestation[T]{}, err
	}
	return Attestation[T]{
		PublicKey: signer.Address(),
		Signature: sig,
		Attested:  value,
	}, nil
}

func (a Attestation[T]) SignerAddress() common.Address    { return a.PublicKey }
func (a Attestation[T]) SignedDigest() common.Hash        { return a.Attested.Hash() }
func (a Attestation[T]) SignatureValue() crypto.Signature { return a.Signature }

// Hash commits to the signer, the signature and the attested value.
func (a Attestation[T]) Hash() common.Hash {
	digest := a.Attested.Hash()
	return ethcrypto.Keccak256Hash(a.PublicKey[:], a.Signature[:], digest[:])
}

// Headless drops the attested value.
func (a Attestation[T]) Headless() HeadlessAttestation {
	return HeadlessAttestation{PublicKey: a.PublicKey, Signature: a.Signature}
}

// HeadlessAttestation is an attestation whose value is known from context,
// such as the receipt it accompanies.
type HeadlessAttestation struct {
	PublicKey common.Address   `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
}

// TimestampedHeadlessAttestation is a headless attestation with the time the
// validator produced it.
type TimestampedHeadlessAttestation struct {
	Timestamp types.Timestamp  `json:"timestamp"`
	PublicKey common.Address   `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
}

// Headless drops the timestamp.
func (a TimestampedHeadlessAttestation) Headless() HeadlessAttestation {
	return HeadlessAttestation{PublicKey: a.PublicKey, Signature: a.Signature}
}

// Indexed attaches a timestamp to a value.
type Indexed[T any] struct {
	Index types.Timestamp `json:"timestamp"`
	Value T               `json:"value"`
}

// Timestamped flattens an indexed headless attestation.
func Timestamped(ix Indexed[HeadlessAttestation]) TimestampedHeadlessAttestation {
	return TimestampedHeadlessAttestation{
		Timestamp: ix.Index,
		PublicKey: ix.Value.PublicKey,
		Signature: ix.Value.Signature,
	}
}

// HashIndexed returns keccak256(abi.encode(micros) || hash(value)).
func HashIndexed[T types.Hashable](ix Indexed[T]) common.Hash {
	digest := ix.Value.Hash()
	return ethcrypto.Keccak256Hash(util.EncodeUint64(ix.Index.Micros()), digest[:])
}

// Certificate is a value with signatures claimed to reach quorum over its
// hash. It is not self-verifying: check it with Committee.VerifyCertificate.
type Certificate[T types.Hashable] struct {
	Signatures []crypto.Signature `json:"signatures"`
	Certified  T                  `json:"certified"`
}

func (c Certificate[T]) CertifiedDigest() common.Hash            { return c.Certified.Hash() }
func (c Certificate[T]) AggregateSignatures() []crypto.Signature { return c.Signatures }

// SignaturesOf collects the signatures of headless attestations.
func SignaturesOf(attestations []HeadlessAttestation) []crypto.Signature {
	sigs := make([]crypto.Signature, len(attestations))
	for i, att := range attestations {
		sigs[i] = att.Signature
	}
	return sigs
}
