package models

import (
	id "vaultcore/pkg/domain"
)

// ValueClass partitions stored payloads by how they are read back.
type ValueClass string

const (
	// ClassSealed: small payload sealed to the vault public key; decrypted
	// only through the boundary service.
	ClassSealed ValueClass = "sealed"

	// ClassPlaintext: non-private data stored in the clear and served without
	// crossing the boundary.
	ClassPlaintext ValueClass = "plaintext"

	// ClassLargeSealed: reference to large externally stored sealed content
	// (e.g. a document blob); fetched through the boundary's large-payload
	// retrieval path.
	ClassLargeSealed ValueClass = "large_sealed"
)

// Value is the Field Store payload attached to one lifetime. Exactly one of
// EData, PData, DocRef is set.
type Value struct {
	LifetimeID id.LifetimeID
	Kind       DataIdentifier
	EData      []byte
	PData      string
	DocRef     string
}

// Class derives the storage class from which column is populated.
func (v Value) Class() ValueClass {
	switch {
	case v.DocRef != "":
		return ClassLargeSealed
	case v.EData != nil:
		return ClassSealed
	default:
		return ClassPlaintext
	}
}
