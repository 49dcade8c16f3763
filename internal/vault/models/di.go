// Package models defines the vault engine's domain types: vaults and their
// tenant bindings, versioned data lifetimes, field identifiers, collected-data
// options and fingerprints.
package models

import (
	"sort"
	"strings"
)

// DataIdentifier names one field kind stored in a vault. Identity fields use
// the "id." prefix; business, card, custom and document data carry their own
// prefixes and use the simpler append-only write paths.
type DataIdentifier string

const (
	IDFirstName     DataIdentifier = "id.first_name"
	IDLastName      DataIdentifier = "id.last_name"
	IDDob           DataIdentifier = "id.dob"
	IDSsn4          DataIdentifier = "id.ssn4"
	IDSsn9          DataIdentifier = "id.ssn9"
	IDAddressLine1  DataIdentifier = "id.address_line1"
	IDAddressLine2  DataIdentifier = "id.address_line2"
	IDCity          DataIdentifier = "id.city"
	IDState         DataIdentifier = "id.state"
	IDZip           DataIdentifier = "id.zip"
	IDCountry       DataIdentifier = "id.country"
	IDNationality   DataIdentifier = "id.nationality"
	IDUSLegalStatus DataIdentifier = "id.us_legal_status"
	IDPhoneNumber   DataIdentifier = "id.phone_number"
	IDEmail         DataIdentifier = "id.email"
	IDVerifiedPhone DataIdentifier = "id.verified_phone_number"
	IDVerifiedEmail DataIdentifier = "id.verified_email"

	BusinessName DataIdentifier = "business.name"
	BusinessTin  DataIdentifier = "business.tin"
)

func (di DataIdentifier) String() string { return string(di) }

// IsIdentity reports whether the field participates in the identity commit
// path. Custom, card, document and business data never do.
func (di DataIdentifier) IsIdentity() bool {
	return strings.HasPrefix(string(di), "id.")
}

// IsDocument reports whether the field references large externally stored
// sealed content.
func (di DataIdentifier) IsDocument() bool {
	return strings.HasPrefix(string(di), "document.")
}

// IsContactInfo reports whether the field is a login-contact field (phone or
// email, verified or not). Contact info prefills before any destination
// tenant scope exists.
func (di DataIdentifier) IsContactInfo() bool {
	switch di {
	case IDPhoneNumber, IDEmail, IDVerifiedPhone, IDVerifiedEmail:
		return true
	}
	return false
}

// IsVerified reports whether the field is a verified contact variant.
func (di DataIdentifier) IsVerified() bool {
	return di == IDVerifiedPhone || di == IDVerifiedEmail
}

// UnverifiedCounterpart returns the unverified sibling of a verified contact
// field, and whether one exists. Prefill writes both together.
func (di DataIdentifier) UnverifiedCounterpart() (DataIdentifier, bool) {
	switch di {
	case IDVerifiedPhone:
		return IDPhoneNumber, true
	case IDVerifiedEmail:
		return IDEmail, true
	}
	return "", false
}

// VerifiedCounterpart is the inverse of UnverifiedCounterpart.
func (di DataIdentifier) VerifiedCounterpart() (DataIdentifier, bool) {
	switch di {
	case IDPhoneNumber:
		return IDVerifiedPhone, true
	case IDEmail:
		return IDVerifiedEmail, true
	}
	return "", false
}

// DISet is an order-insensitive set of data identifiers.
type DISet map[DataIdentifier]struct{}

// NewDISet builds a set from its members.
func NewDISet(dis ...DataIdentifier) DISet {
	s := make(DISet, len(dis))
	for _, di := range dis {
		s[di] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s DISet) Has(di DataIdentifier) bool {
	_, ok := s[di]
	return ok
}

// ContainsAll reports whether every element of other is in s.
func (s DISet) ContainsAll(other []DataIdentifier) bool {
	for _, di := range other {
		if !s.Has(di) {
			return false
		}
	}
	return true
}

// Sorted returns the members in lexical order for deterministic output.
func (s DISet) Sorted() []DataIdentifier {
	out := make([]DataIdentifier, 0, len(s))
	for di := range s {
		out = append(out, di)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
