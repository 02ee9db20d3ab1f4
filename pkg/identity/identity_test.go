package identity

import (
	"crypto/sha256"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, seed byte) *secp256k1.PrivateKey {
	t.Helper()
	b := make([]byte, 32)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return secp256k1.PrivKeyFromBytes(b)
}

func TestOwnerAddressRoundTrip(t *testing.T) {
	priv := testKey(t, 7)
	owner := OwnerFromPublicKey(priv.PubKey())
	require.NotEmpty(t, owner.String())

	parsed, err := ParseOwner(owner.String())
	require.NoError(t, err)
	require.Equal(t, owner, parsed)
}

func TestParseOwnerRejectsBadChecksum(t *testing.T) {
	priv := testKey(t, 7)
	owner := OwnerFromPublicKey(priv.PubKey())
	tampered := owner.String()[:len(owner.String())-1] + "x"
	_, err := ParseOwner(tampered)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestSignAndVerify(t *testing.T) {
	priv := testKey(t, 9)
	digest := sha256.Sum256([]byte("order payload"))

	sig := Sign(priv, digest[:])
	require.True(t, sig.Verify(digest[:], priv.PubKey()))

	other := testKey(t, 10)
	require.False(t, sig.Verify(digest[:], other.PubKey()))
}

func TestSignIsDeterministic(t *testing.T) {
	priv := testKey(t, 11)
	digest := sha256.Sum256([]byte("same order twice"))

	sig1 := Sign(priv, digest[:])
	sig2 := Sign(priv, digest[:])
	require.Equal(t, sig1.Serialize(), sig2.Serialize(), "RFC 6979 signing must be deterministic")
}

func TestSignatureSerializeRoundTrip(t *testing.T) {
	priv := testKey(t, 12)
	digest := sha256.Sum256([]byte("payload"))
	sig := Sign(priv, digest[:])

	parsed, err := ParseSignature(sig.Serialize())
	require.NoError(t, err)
	require.True(t, parsed.Verify(digest[:], priv.PubKey()))
}

func TestAuthenticatorRule(t *testing.T) {
	alice := OwnerFromPublicKey(testKey(t, 1).PubKey())
	bob := OwnerFromPublicKey(testKey(t, 2).PubKey())
	app := OwnerFromPublicKey(testKey(t, 3).PubKey())

	a := Authenticator{AuthenticatedSigner: &alice}
	require.NoError(t, a.Authenticate(alice))
	require.ErrorIs(t, a.Authenticate(bob), ErrIncorrectAuthentication)

	viaApp := Authenticator{AuthenticatedApplication: &app}
	require.NoError(t, viaApp.Authenticate(app))
	require.ErrorIs(t, viaApp.Authenticate(alice), ErrIncorrectAuthentication)

	unauthenticated := Authenticator{}
	require.ErrorIs(t, unauthenticated.Authenticate(alice), ErrIncorrectAuthentication)
}
