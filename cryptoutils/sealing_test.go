package cryptoutils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	passphrase := []byte("correct horse battery staple")
	aad := []byte("device-identity")

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "Simple string", data: []byte("This is a secret message")},
		{name: "Binary data", data: []byte{0x00, 0x01, 0x02, 0x03, 0xFF, 0xFE, 0xFD}},
		{name: "Empty data", data: []byte{}},
		{name: "Long data", data: bytes.Repeat([]byte{0x42}, 4096)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sealed, err := Seal(passphrase, tc.data, aad)
			require.NoError(t, err)
			require.Greater(t, len(sealed), len(tc.data))

			opened, err := Open(passphrase, sealed, aad)
			require.NoError(t, err)
			require.True(t, bytes.Equal(tc.data, opened))
		})
	}
}

func TestSealIsRandomized(t *testing.T) {
	a, err := Seal([]byte("pass"), []byte("data"), nil)
	require.NoError(t, err)
	b, err := Seal([]byte("pass"), []byte("data"), nil)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestOpenFailures(t *testing.T) {
	sealed, err := Seal([]byte("pass"), []byte("data"), []byte("aad"))
	require.NoError(t, err)

	_, err = Open([]byte("wrong"), sealed, []byte("aad"))
	require.ErrorIs(t, err, ErrSealedDataAuthFailed)

	_, err = Open([]byte("pass"), sealed, []byte("other"))
	require.ErrorIs(t, err, ErrSealedDataAuthFailed)

	tampered := bytes.Clone(sealed)
	tampered[len(tampered)-1] ^= 0x01
	_, err = Open([]byte("pass"), tampered, []byte("aad"))
	require.ErrorIs(t, err, ErrSealedDataAuthFailed)

	badVersion := bytes.Clone(sealed)
	badVersion[0] = 9
	_, err = Open([]byte("pass"), badVersion, []byte("aad"))
	require.ErrorIs(t, err, ErrSealedDataVersion)

	_, err = Open([]byte("pass"), sealed[:10], []byte("aad"))
	require.ErrorIs(t, err, ErrSealedDataTooShort)
}

func TestDeriveSealingKeyDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	require.Equal(t, DeriveSealingKey([]byte("p"), salt), DeriveSealingKey([]byte("p"), salt))
	require.NotEqual(t, DeriveSealingKey([]byte("p"), salt), DeriveSealingKey([]byte("q"), salt))
	require.Len(t, DeriveSealingKey([]byte("p"), salt), 32)
}
