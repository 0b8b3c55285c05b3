package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestKeyboxRoundTrip(t *testing.T) {
	kb, err := NewKeybox(testKey)
	require.NoError(t, err)

	sealed, err := kb.Seal("ABCDEF0123456789ABCDEF0123456789")
	require.NoError(t, err)
	assert.NotEqual(t, "ABCDEF0123456789ABCDEF0123456789", sealed)

	opened, err := kb.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF0123456789ABCDEF0123456789", opened)
}

func TestKeyboxRejectsBadKey(t *testing.T) {
	_, err := NewKeybox("too-short")
	assert.ErrorIs(t, err, ErrKeySize)
}

func TestKeyboxRejectsTamperedCiphertext(t *testing.T) {
	kb, err := NewKeybox(testKey)
	require.NoError(t, err)

	_, err = kb.Open("bm90IGEgcmVhbCBjaXBoZXJ0ZXh0")
	assert.Error(t, err)

	_, err = kb.Open("%%%")
	assert.Error(t, err)

	_, err = kb.Open("YWI=")
	assert.ErrorIs(t, err, ErrCiphertextSize)
}
