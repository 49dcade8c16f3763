package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultcore/internal/vault/models"
	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
)

func TestBatchBuilder(t *testing.T) {
	vaultID := id.NewVaultID()
	svID := id.NewScopedVaultID()
	now := time.Now()

	t.Run("builds aligned lifetimes and values", func(t *testing.T) {
		b := NewBatchBuilder(vaultID, svID, models.SourceTenant)
		require.NoError(t, b.AddField(models.IDFirstName, nil))
		require.NoError(t, b.AddField(models.IDCountry, nil))
		require.NoError(t, b.AttachSealed(models.IDFirstName, []byte("sealed")))
		require.NoError(t, b.AttachPlaintext(models.IDCountry, "US"))

		lifetimes, values, err := b.Build(7, now)
		require.NoError(t, err)
		require.Len(t, lifetimes, 2)
		require.Len(t, values, 2)

		for i, l := range lifetimes {
			assert.Equal(t, vaultID, l.VaultID)
			assert.Equal(t, svID, l.ScopedVaultID)
			assert.Equal(t, id.Seqno(7), l.CreatedSeqno)
			assert.Equal(t, models.StatusSpeculative, l.Status())
			assert.Equal(t, l.ID, values[i].LifetimeID)
		}
		assert.Equal(t, models.ClassSealed, values[0].Class())
		assert.Equal(t, models.ClassPlaintext, values[1].Class())
	})

	t.Run("lifetime IDs available before build", func(t *testing.T) {
		b := NewBatchBuilder(vaultID, svID, models.SourceTenant)
		require.NoError(t, b.AddField(models.IDSsn9, nil))

		lid, ok := b.LifetimeID(models.IDSsn9)
		require.True(t, ok)
		require.NoError(t, b.AttachSealed(models.IDSsn9, []byte("s")))

		lifetimes, _, err := b.Build(3, now)
		require.NoError(t, err)
		assert.Equal(t, lid, lifetimes[0].ID)
	})

	t.Run("prefill origin is carried through", func(t *testing.T) {
		origin := id.NewLifetimeID()
		b := NewBatchBuilder(vaultID, svID, models.SourcePrefill)
		require.NoError(t, b.AddField(models.IDEmail, &origin))
		require.NoError(t, b.AttachSealed(models.IDEmail, []byte("s")))

		lifetimes, _, err := b.Build(4, now)
		require.NoError(t, err)
		require.NotNil(t, lifetimes[0].OriginID)
		assert.Equal(t, origin, *lifetimes[0].OriginID)
	})

	t.Run("duplicate declaration rejected", func(t *testing.T) {
		b := NewBatchBuilder(vaultID, svID, models.SourceTenant)
		require.NoError(t, b.AddField(models.IDFirstName, nil))
		err := b.AddField(models.IDFirstName, nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("attach to undeclared field rejected", func(t *testing.T) {
		b := NewBatchBuilder(vaultID, svID, models.SourceTenant)
		err := b.AttachSealed(models.IDFirstName, []byte("s"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("double attach rejected", func(t *testing.T) {
		b := NewBatchBuilder(vaultID, svID, models.SourceTenant)
		require.NoError(t, b.AddField(models.IDCountry, nil))
		require.NoError(t, b.AttachPlaintext(models.IDCountry, "US"))
		err := b.AttachPlaintext(models.IDCountry, "CA")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("declared field without payload fails the build", func(t *testing.T) {
		b := NewBatchBuilder(vaultID, svID, models.SourceTenant)
		require.NoError(t, b.AddField(models.IDLastName, nil))
		_, _, err := b.Build(2, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("build without seqno fails", func(t *testing.T) {
		b := NewBatchBuilder(vaultID, svID, models.SourceTenant)
		_, _, err := b.Build(0, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}
