package boundary

import (
	"context"

	vcrypto "vaultcore/internal/crypto"
	dErrors "vaultcore/pkg/domain-errors"
)

// BlobFetcher retrieves externally stored sealed content by its reference.
type BlobFetcher func(ctx context.Context, docRef string) ([]byte, error)

// LocalEnclave is an in-process boundary implementation holding the master
// keypair. Used in development and tests; production deploys the isolated
// boundary service and this code never sees a master private key.
type LocalEnclave struct {
	masterPublicKey  []byte
	masterPrivateKey []byte
	fetchBlob        BlobFetcher
}

// NewLocalEnclave builds an enclave around the master keypair. fetchBlob may
// be nil when no large payloads will be requested.
func NewLocalEnclave(masterPublicKey, masterPrivateKey []byte, fetchBlob BlobFetcher) *LocalEnclave {
	return &LocalEnclave{
		masterPublicKey:  masterPublicKey,
		masterPrivateKey: masterPrivateKey,
		fetchBlob:        fetchBlob,
	}
}

func (e *LocalEnclave) BatchDecrypt(ctx context.Context, sealedVaultKey []byte, items []SealedItem) (map[string][]byte, error) {
	vaultPub, vaultPriv, err := e.unsealVaultKey(sealedVaultKey)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(items))
	for _, item := range items {
		plaintext, err := vcrypto.Open(vaultPub, vaultPriv, item.Sealed)
		if err != nil {
			return nil, dErrors.Wrapf(err, dErrors.CodeBoundary, "open payload %q", item.Ref)
		}
		out[item.Ref] = plaintext
	}
	return out, nil
}

func (e *LocalEnclave) BatchDecryptLarge(ctx context.Context, sealedVaultKey []byte, items []LargeItem) (map[string][]byte, error) {
	if len(items) == 0 {
		return map[string][]byte{}, nil
	}
	if e.fetchBlob == nil {
		return nil, dErrors.New(dErrors.CodeBoundary, "no blob fetcher configured")
	}
	vaultPub, vaultPriv, err := e.unsealVaultKey(sealedVaultKey)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(items))
	for _, item := range items {
		sealed, err := e.fetchBlob(ctx, item.DocRef)
		if err != nil {
			return nil, dErrors.Wrapf(err, dErrors.CodeBoundary, "fetch blob %q", item.DocRef)
		}
		plaintext, err := vcrypto.Open(vaultPub, vaultPriv, sealed)
		if err != nil {
			return nil, dErrors.Wrapf(err, dErrors.CodeBoundary, "open blob %q", item.Ref)
		}
		out[item.Ref] = plaintext
	}
	return out, nil
}

func (e *LocalEnclave) BatchFingerprint(ctx context.Context, sealedVaultKey []byte, items []FingerprintItem) (map[string][]byte, error) {
	vaultPub, vaultPriv, err := e.unsealVaultKey(sealedVaultKey)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(items))
	for _, item := range items {
		plaintext, err := vcrypto.Open(vaultPub, vaultPriv, item.Sealed)
		if err != nil {
			return nil, dErrors.Wrapf(err, dErrors.CodeBoundary, "open payload %q", item.Ref)
		}
		out[item.Ref] = vcrypto.Fingerprint(item.Salt, plaintext)
	}
	return out, nil
}

// unsealVaultKey opens the envelope-sealed vault private key with the master
// keypair and rederives the vault public key from it.
func (e *LocalEnclave) unsealVaultKey(sealedVaultKey []byte) (pub, priv []byte, err error) {
	opened, err := vcrypto.Open(e.masterPublicKey, e.masterPrivateKey, sealedVaultKey)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeBoundary, "unseal vault key")
	}
	// The envelope holds pub || priv so the enclave does not need a second
	// lookup to open payloads sealed to the vault public key.
	if len(opened) != 2*vcrypto.KeySize {
		return nil, nil, dErrors.New(dErrors.CodeBoundary, "malformed vault key envelope")
	}
	return opened[:vcrypto.KeySize], opened[vcrypto.KeySize:], nil
}

// SealVaultKeyEnvelope packs a vault keypair into the envelope format the
// enclave expects, sealed under the master public key. Used at vault
// creation.
func SealVaultKeyEnvelope(masterPublicKey, vaultPublicKey, vaultPrivateKey []byte) ([]byte, error) {
	envelope := make([]byte, 0, 2*vcrypto.KeySize)
	envelope = append(envelope, vaultPublicKey...)
	envelope = append(envelope, vaultPrivateKey...)
	return vcrypto.Seal(masterPublicKey, envelope)
}
