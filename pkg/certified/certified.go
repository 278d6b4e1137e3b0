// Package certified implements the compact proof format a third party, such
// as a contract on another chain, uses to check that a receipt or log was
// certified by the committee. Verification needs only the committee
// addresses and the quorum size.
package certified

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/committee"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/crypto"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/ledger"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/merkle"
)

// ErrMalformedSignature is returned when an aggregate signature is not a
// whole number of 65 byte signatures.
var ErrMalformedSignature = errors.New("malformed aggregate signature")

// Config is the trust anchor for verification.
type Config struct {
	Committee *committee.Committee
}

// CertifiedReceipt is a receipt root with the concatenated attestation
// signatures over it.
type CertifiedReceipt struct {
	ReceiptRoot                 common.Hash   `json:"receiptRoot"`
	AggregateSignature          hexutil.Bytes `json:"aggregateSignature"`
	SortedAttestationTimestamps []uint64      `json:"sortedAttestationTimestamps,omitempty"`
}

// Certificate proves a single leaf of a certified receipt.
type Certificate struct {
	CertifiedReceipt CertifiedReceipt   `json:"certifiedReceipt"`
	Leaf             common.Hash        `json:"leaf"`
	Proof            merkle.MerkleProof `json:"proof"`
}

// MultiCertificate proves several leaves of a certified receipt.
type MultiCertificate struct {
	CertifiedReceipt CertifiedReceipt        `json:"certifiedReceipt"`
	Leaves           []common.Hash           `json:"leaves"`
	Proof            merkle.MerkleMultiProof `json:"proof"`
}

// CertifiedLog proves that log is the logIndex-th log of a certified receipt.
type CertifiedLog struct {
	Log         ledger.Log  `json:"log"`
	LogIndex    uint64      `json:"logIndex"`
	Certificate Certificate `json:"certificate"`
}

// AggregateSignatures concatenates signatures in order.
func AggregateSignatures(sigs []crypto.Signature) []byte {
	out := make([]byte, 0, len(sigs)*crypto.SignatureLength)
	for _, sig := range sigs {
		out = append(out, sig[:]...)
	}
	return out
}

// SplitSignatures is the inverse of AggregateSignatures.
func SplitSignatures(aggregate []byte) ([]crypto.Signature, error) {
	if len(aggregate)%crypto.SignatureLength != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrMalformedSignature, len(aggregate), crypto.SignatureLength)
	}
	sigs := make([]crypto.Signature, len(aggregate)/crypto.SignatureLength)
	for i := range sigs {
		copy(sigs[i][:], aggregate[i*crypto.SignatureLength:(i+1)*crypto.SignatureLength])
	}
	return sigs, nil
}

// HashLog returns the digest a receipt commits to for log.
func HashLog(log ledger.Log) common.Hash {
	return log.Hash()
}

// LogHashLeaf returns the receipt tree leaf for the hash of the log at logIndex.
func LogHashLeaf(log ledger.Log, logIndex uint64) common.Hash {
	return merkle.HashLeaf(merkle.IndexPrefix("log_hashes", int(logIndex)), HashLog(log))
}

// VerifyCertifiedReceipt checks that a quorum of the committee signed the
// receipt root. A quorum shortfall is false with no error.
func VerifyCertifiedReceipt(cfg Config, cr CertifiedReceipt) (bool, error) {
	if cfg.Committee == nil {
		return false, errors.New("config has no committee")
	}
	sigs, err := SplitSignatures(cr.AggregateSignature)
	if err != nil {
		return false, err
	}

	err = cfg.Committee.VerifyAggregateAttestation(cr.ReceiptRoot, sigs)
	if err == nil {
		return true, nil
	}
	if committee.IsInsufficientSignatures(err) {
		return false, nil
	}
	return false, err
}

// VerifyCertificate checks the receipt certification and the leaf proof.
func VerifyCertificate(cfg Config, cert Certificate) (bool, error) {
	ok, err := VerifyCertifiedReceipt(cfg, cert.CertifiedReceipt)
	if err != nil || !ok {
		return false, err
	}
	return merkle.VerifyProof(cert.CertifiedReceipt.ReceiptRoot, cert.Leaf, &cert.Proof), nil
}

// VerifyMultiCertificate checks the receipt certification and the multiproof.
func VerifyMultiCertificate(cfg Config, cert MultiCertificate) (bool, error) {
	ok, err := VerifyCertifiedReceipt(cfg, cert.CertifiedReceipt)
	if err != nil || !ok {
		return false, err
	}
	return merkle.VerifyMultiProof(cert.CertifiedReceipt.ReceiptRoot, cert.Leaves, &cert.Proof)
}

// VerifyCertifiedLog checks that the certificate leaf commits to the log at
// the claimed index and that the certificate itself is valid.
func VerifyCertifiedLog(cfg Config, cl CertifiedLog) (bool, error) {
	if cl.Certificate.Leaf != LogHashLeaf(cl.Log, cl.LogIndex) {
		return false, nil
	}
	return VerifyCertificate(cfg, cl.Certificate)
}

// FromVerifiableLog packages a log fetched from a node into a CertifiedLog.
func FromVerifiableLog(vl *ledger.VerifiableLog) (*CertifiedLog, error) {
	index, err := vl.Index()
	if err != nil {
		return nil, err
	}
	proof, err := vl.GenerateProof()
	if err != nil {
		return nil, err
	}

	log := vl.Log()
	return &CertifiedLog{
		Log:      log,
		LogIndex: uint64(index),
		Certificate: Certificate{
			CertifiedReceipt: CertifiedReceiptFromLog(vl),
			Leaf:             LogHashLeaf(log, uint64(index)),
			Proof:            *proof,
		},
	}, nil
}

// MultiCertificateFromVerifiableLog proves every field of the log.
func MultiCertificateFromVerifiableLog(vl *ledger.VerifiableLog) (*MultiCertificate, error) {
	leaves, proof, err := vl.GenerateMultiProof()
	if err != nil {
		return nil, err
	}
	return &MultiCertificate{
		CertifiedReceipt: CertifiedReceiptFromLog(vl),
		Leaves:           leaves,
		Proof:            *proof,
	}, nil
}

// CertifiedReceiptFromLog builds the certified receipt bundled with a log.
func CertifiedReceiptFromLog(vl *ledger.VerifiableLog) CertifiedReceipt {
	return newCertifiedReceipt(vl.ReceiptRoot(), vl.Metadata.Attestations)
}

// CertifiedReceiptFromResponse builds the certified receipt of a receipt
// response.
func CertifiedReceiptFromResponse(rr *ledger.ReceiptResponse) CertifiedReceipt {
	return newCertifiedReceipt(rr.Receipt().Hash(), rr.Metadata.Attestations)
}

func newCertifiedReceipt(root common.Hash, atts []committee.TimestampedHeadlessAttestation) CertifiedReceipt {
	timestamps := make([]uint64, len(atts))
	sigs := make([]crypto.Signature, len(atts))
	for i, att := range atts {
		timestamps[i] = att.Timestamp.Seconds()
		sigs[i] = att.Signature
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	return CertifiedReceipt{
		ReceiptRoot:                 root,
		AggregateSignature:          AggregateSignatures(sigs),
		SortedAttestationTimestamps: timestamps,
	}
}
