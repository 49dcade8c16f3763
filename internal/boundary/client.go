// Package boundary defines the client contract for the isolated boundary
// service that holds vault private keys and performs all real decryption and
// fingerprinting. The engine never sees an unsealed private key.
package boundary

import "context"

// MaxBatchSize is the boundary service's per-call item limit. Callers chunk
// requests at or below this size.
const MaxBatchSize = 500

// SealedItem is one small sealed payload to decrypt. Ref is a caller-chosen
// identity echoed back in the result.
type SealedItem struct {
	Ref    string
	Sealed []byte
}

// LargeItem is one reference to large externally stored sealed content. The
// boundary service retrieves the blob itself, which is why large batches are
// dispatched separately from small ones.
type LargeItem struct {
	Ref    string
	DocRef string
}

// FingerprintItem is one sealed payload to fingerprint under the given salt.
type FingerprintItem struct {
	Ref    string
	Salt   []byte
	Sealed []byte
}

//go:generate mockgen -source=client.go -destination=mock/client_mock.go -package=mock

// Client is the request/response boundary interface. Implementations must be
// safe for concurrent use; the gateway dispatches up to four calls at once.
// All calls are all-or-nothing: a failure means no partial results.
type Client interface {
	// BatchDecrypt opens each sealed payload using the vault private key
	// (itself delivered sealed) and returns plaintexts keyed by Ref.
	BatchDecrypt(ctx context.Context, sealedVaultKey []byte, items []SealedItem) (map[string][]byte, error)

	// BatchDecryptLarge retrieves and opens large external payloads.
	BatchDecryptLarge(ctx context.Context, sealedVaultKey []byte, items []LargeItem) (map[string][]byte, error)

	// BatchFingerprint computes salted fingerprints of sealed payloads
	// without ever returning the plaintext.
	BatchFingerprint(ctx context.Context, sealedVaultKey []byte, items []FingerprintItem) (map[string][]byte, error)
}
