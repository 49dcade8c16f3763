package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "vaultcore/pkg/domain"
)

func TestLifetimeStatus(t *testing.T) {
	l := DataLifetime{CreatedSeqno: 5}
	assert.Equal(t, StatusSpeculative, l.Status())

	l.PortablizedSeqno = SeqnoPtr(7)
	assert.Equal(t, StatusPortable, l.Status())

	l.DeactivatedSeqno = SeqnoPtr(9)
	assert.Equal(t, StatusDeactivated, l.Status())
}

func TestVisibleTo(t *testing.T) {
	owner := id.NewScopedVaultID()
	other := id.NewScopedVaultID()

	t.Run("speculative visible only to owner", func(t *testing.T) {
		l := DataLifetime{CreatedSeqno: 5, ScopedVaultID: owner}
		assert.True(t, l.VisibleTo(owner, 10))
		assert.False(t, l.VisibleTo(other, 10))
	})

	t.Run("portable visible to any scope", func(t *testing.T) {
		l := DataLifetime{CreatedSeqno: 5, ScopedVaultID: owner, PortablizedSeqno: SeqnoPtr(6)}
		assert.True(t, l.VisibleTo(owner, 10))
		assert.True(t, l.VisibleTo(other, 10))
	})

	t.Run("not yet created at asOf", func(t *testing.T) {
		l := DataLifetime{CreatedSeqno: 12, ScopedVaultID: owner}
		assert.False(t, l.VisibleTo(owner, 10))
	})

	t.Run("deactivated at or before asOf is invisible", func(t *testing.T) {
		l := DataLifetime{
			CreatedSeqno:     5,
			ScopedVaultID:    owner,
			PortablizedSeqno: SeqnoPtr(6),
			DeactivatedSeqno: SeqnoPtr(8),
		}
		assert.False(t, l.VisibleTo(owner, 10))
		assert.False(t, l.VisibleTo(other, 8))
		// Still visible when reading a version before the deactivation.
		assert.True(t, l.VisibleTo(other, 7))
	})
}

func TestValueClass(t *testing.T) {
	assert.Equal(t, ClassSealed, Value{EData: []byte{1}}.Class())
	assert.Equal(t, ClassPlaintext, Value{PData: "US"}.Class())
	assert.Equal(t, ClassLargeSealed, Value{DocRef: "s3://doc"}.Class())
}
