package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/committee"
)

// MarshalCommittee serializes a committee to JSON
func MarshalCommittee(c *committee.Committee) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("cannot marshal nil Committee")
	}

	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Committee to JSON: %w", err)
	}
	return data, nil
}

// UnmarshalCommittee deserializes a committee from JSON. The committee is
// rebuilt through its constructor, so stored data with an invalid quorum is
// rejected.
func UnmarshalCommittee(data []byte) (*committee.Committee, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	c := new(committee.Committee)
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Committee from JSON: %w", err)
	}
	return c, nil
}

// MarshalCertifiedReceiptRecord serializes a record to JSON
func MarshalCertifiedReceiptRecord(record *CertifiedReceiptRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot marshal nil CertifiedReceiptRecord")
	}
	if record.Receipt == nil {
		return nil, fmt.Errorf("cannot marshal CertifiedReceiptRecord without receipt")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal CertifiedReceiptRecord to JSON: %w", err)
	}
	return data, nil
}

// UnmarshalCertifiedReceiptRecord deserializes a record from JSON
func UnmarshalCertifiedReceiptRecord(data []byte) (*CertifiedReceiptRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var record CertifiedReceiptRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal CertifiedReceiptRecord from JSON: %w", err)
	}
	if record.Receipt == nil {
		return nil, fmt.Errorf("CertifiedReceiptRecord %s has no receipt", record.TxHash.Hex())
	}
	return &record, nil
}

// CopyCertifiedReceiptRecord returns a deep copy made through the JSON form.
func CopyCertifiedReceiptRecord(record *CertifiedReceiptRecord) (*CertifiedReceiptRecord, error) {
	data, err := MarshalCertifiedReceiptRecord(record)
	if err != nil {
		return nil, err
	}
	return UnmarshalCertifiedReceiptRecord(data)
}
