package gateway

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vaultcore/internal/boundary"
	"vaultcore/internal/boundary/mock"
	"vaultcore/internal/crypto"
	"vaultcore/internal/platform/logger"
	"vaultcore/internal/vault/models"
	"vaultcore/internal/vault/store/fields"
	"vaultcore/internal/vault/store/ledger"
	"vaultcore/internal/vault/store/vaults"
	"vaultcore/internal/vault/view"
	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
)

type GatewaySuite struct {
	suite.Suite

	ctx     context.Context
	enclave *boundary.LocalEnclave
	builder *view.Builder
	vaults  *vaults.InMemory
	ledger  *ledger.InMemory
	fields  *fields.InMemory

	vault    models.Vault
	vaultPub []byte
	scope    models.ScopedVault
	seqno    id.Seqno
	blobs    map[string][]byte
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.ctx = context.Background()

	masterPub, masterPriv, err := crypto.GenerateKeypair()
	s.Require().NoError(err)
	s.blobs = map[string][]byte{}
	s.enclave = boundary.NewLocalEnclave(masterPub, masterPriv, func(_ context.Context, docRef string) ([]byte, error) {
		blob, ok := s.blobs[docRef]
		if !ok {
			return nil, errors.New("blob not found")
		}
		return blob, nil
	})

	vaultPub, vaultPriv, err := crypto.GenerateKeypair()
	s.Require().NoError(err)
	s.vaultPub = vaultPub
	envelope, err := boundary.SealVaultKeyEnvelope(masterPub, vaultPub, vaultPriv)
	s.Require().NoError(err)

	s.vaults = vaults.NewInMemory()
	s.ledger = ledger.NewInMemory()
	s.fields = fields.NewInMemory()
	s.builder = view.NewBuilder(s.vaults, s.ledger, s.fields)

	s.vault = models.Vault{
		ID: id.NewVaultID(), Kind: models.VaultKindPerson,
		PublicKey: vaultPub, EPrivateKey: envelope,
		IsLive: true, CreatedAt: time.Now(),
	}
	s.Require().NoError(s.vaults.CreateVault(s.ctx, &s.vault))

	s.scope = models.ScopedVault{
		ID: id.NewScopedVaultID(), VaultID: s.vault.ID, TenantID: id.NewTenantID(),
		ExternalID: models.NewExternalID(models.VaultKindPerson), IsActive: true, CreatedAt: time.Now(),
	}
	s.Require().NoError(s.vaults.CreateScopedVault(s.ctx, &s.scope))
	s.seqno = 0
}

func (s *GatewaySuite) seedValue(kind models.DataIdentifier, v models.Value) {
	s.seqno++
	l := &models.DataLifetime{
		ID: id.NewLifetimeID(), VaultID: s.vault.ID, ScopedVaultID: s.scope.ID,
		Kind: kind, Source: models.SourceTenant, CreatedSeqno: s.seqno, CreatedAt: time.Now(),
	}
	s.Require().NoError(s.ledger.CreateBatch(s.ctx, []*models.DataLifetime{l}))
	v.LifetimeID = l.ID
	v.Kind = kind
	s.Require().NoError(s.fields.CreateBatch(s.ctx, []*models.Value{&v}))
}

func (s *GatewaySuite) seedSealed(kind models.DataIdentifier, plaintext string) {
	sealed, err := crypto.Seal(s.vaultPub, []byte(plaintext))
	s.Require().NoError(err)
	s.seedValue(kind, models.Value{EData: sealed})
}

func (s *GatewaySuite) seedDoc(kind models.DataIdentifier, docRef, plaintext string) {
	sealed, err := crypto.Seal(s.vaultPub, []byte(plaintext))
	s.Require().NoError(err)
	s.blobs[docRef] = sealed
	s.seedValue(kind, models.Value{DocRef: docRef})
}

func (s *GatewaySuite) buildView() *view.View {
	v, err := s.builder.Build(s.ctx, s.scope.ID, 0)
	s.Require().NoError(err)
	return v
}

// =====================================================================
// Decrypt
// =====================================================================

const docIDCardFront = models.DataIdentifier("document.id_card_front")

func (s *GatewaySuite) TestDecryptAllClasses() {
	s.seedSealed(models.IDFirstName, "Jane")
	s.seedValue(models.IDCountry, models.Value{PData: "US"})
	s.seedDoc(docIDCardFront, "doc/front", "front-bytes")

	g := New(s.enclave, logger.Nop())
	res, err := g.Decrypt(s.ctx, s.buildView(), []Request{
		{Kind: models.IDFirstName},
		{Kind: models.IDCountry},
		{Kind: docIDCardFront},
	})
	s.Require().NoError(err)

	s.Equal("Jane", res.Values[models.IDFirstName])
	s.Equal("US", res.Values[models.IDCountry])
	s.Equal("front-bytes", res.Values[docIDCardFront])

	// Plaintext never crosses the boundary.
	s.Equal([]models.DataIdentifier{docIDCardFront, models.IDFirstName}, res.RequiredDecrypt)
}

func (s *GatewaySuite) TestAbsentKindsAreSkippedNotErrors() {
	s.seedSealed(models.IDFirstName, "Jane")

	g := New(s.enclave, logger.Nop())
	res, err := g.Decrypt(s.ctx, s.buildView(), []Request{
		{Kind: models.IDFirstName},
		{Kind: models.IDSsn9},
	})
	s.Require().NoError(err)
	s.Len(res.Values, 1)
	s.Contains(res.Values, models.IDFirstName)
}

func (s *GatewaySuite) TestTransformsApplyAfterDecrypt() {
	s.seedSealed(models.IDSsn9, "123456789")
	s.seedValue(models.IDCountry, models.Value{PData: "us"})

	g := New(s.enclave, logger.Nop())
	res, err := g.Decrypt(s.ctx, s.buildView(), []Request{
		{Kind: models.IDSsn9, Transforms: Pipeline{{Op: OpSuffix, N: 4}}},
		{Kind: models.IDCountry, Transforms: Pipeline{{Op: OpUppercase}}},
	})
	s.Require().NoError(err)
	s.Equal("6789", res.Values[models.IDSsn9])
	s.Equal("US", res.Values[models.IDCountry])
}

func (s *GatewaySuite) TestMalformedPipelineFailsBeforeDispatch() {
	ctrl := gomock.NewController(s.T())
	client := mock.NewMockClient(ctrl)
	// No boundary expectations: nothing may be dispatched.

	s.seedSealed(models.IDFirstName, "Jane")
	g := New(client, logger.Nop())
	_, err := g.Decrypt(s.ctx, s.buildView(), []Request{
		{Kind: models.IDFirstName, Transforms: Pipeline{{Op: "mystery"}}},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *GatewaySuite) TestBoundaryFailureFailsWholeCall() {
	ctrl := gomock.NewController(s.T())
	client := mock.NewMockClient(ctrl)
	client.EXPECT().
		BatchDecrypt(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeBoundary, "boundary timeout"))

	s.seedSealed(models.IDFirstName, "Jane")
	s.seedValue(models.IDCountry, models.Value{PData: "US"})

	g := New(client, logger.Nop())
	_, err := g.Decrypt(s.ctx, s.buildView(), []Request{
		{Kind: models.IDFirstName},
		{Kind: models.IDCountry},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeBoundary))
}

func (s *GatewaySuite) TestLargeRequestIsChunked() {
	ctrl := gomock.NewController(s.T())
	client := mock.NewMockClient(ctrl)

	kinds := make([]models.DataIdentifier, 0, boundary.MaxBatchSize+1)
	reqs := make([]Request, 0, boundary.MaxBatchSize+1)
	for i := 0; i < boundary.MaxBatchSize+1; i++ {
		kind := models.DataIdentifier("custom.field_" + strconv.Itoa(i))
		s.seedValue(kind, models.Value{EData: []byte("sealed")})
		kinds = append(kinds, kind)
		reqs = append(reqs, Request{Kind: kind})
	}

	client.EXPECT().
		BatchDecrypt(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ []byte, items []boundary.SealedItem) (map[string][]byte, error) {
			s.LessOrEqual(len(items), boundary.MaxBatchSize)
			out := make(map[string][]byte, len(items))
			for _, it := range items {
				out[it.Ref] = []byte("plain")
			}
			return out, nil
		}).
		Times(2)

	g := New(client, logger.Nop())
	res, err := g.Decrypt(s.ctx, s.buildView(), reqs)
	s.Require().NoError(err)
	s.Len(res.Values, len(kinds))
	s.Len(res.RequiredDecrypt, len(kinds))
}
