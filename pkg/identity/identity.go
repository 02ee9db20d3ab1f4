// Package identity implements owner identities and signature
// authentication for order submission: the "effective signer must equal
// the declared owner" rule. Owners are secp256k1-derived addresses built
// on github.com/decred/dcrd/dcrec/secp256k1/v4 for the curve and
// github.com/mr-tron/base58 for the textual encoding (version byte,
// checksum, base58), in the style of a NEO address.
package identity

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/mr-tron/base58"
)

// addressVersion is prepended to every encoded address, playing the same
// role as NEO's 0x17 address-version byte.
const addressVersion byte = 0x2a

// ErrInvalidAddress is returned by ParseOwner when the payload's checksum
// or length is wrong.
var ErrInvalidAddress = errors.New("colview/identity: invalid owner address")

// Owner identifies an account by the base58 encoding of its compressed
// secp256k1 public key hash, matching the application-owner identification
// the matching-engine's authentication rule names.
type Owner struct {
	address string
}

// OwnerFromPublicKey derives the Owner address for pub.
func OwnerFromPublicKey(pub *secp256k1.PublicKey) Owner {
	return Owner{address: encodeAddress(pub)}
}

// ParseOwner decodes and checksum-validates an address string.
func ParseOwner(address string) (Owner, error) {
	payload, err := base58.Decode(address)
	if err != nil {
		return Owner{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(payload) < 5 || payload[0] != addressVersion {
		return Owner{}, ErrInvalidAddress
	}
	body, checksum := payload[:len(payload)-4], payload[len(payload)-4:]
	if !checksumValid(body, checksum) {
		return Owner{}, ErrInvalidAddress
	}
	return Owner{address: address}, nil
}

// String returns the canonical base58 address.
func (o Owner) String() string { return o.address }

// IsZero reports whether o is the zero Owner (no address set).
func (o Owner) IsZero() bool { return o.address == "" }

func encodeAddress(pub *secp256k1.PublicKey) string {
	hash := sha256.Sum256(pub.SerializeCompressed())
	body := append([]byte{addressVersion}, hash[:]...)
	checksum := checksumOf(body)
	return base58.Encode(append(body, checksum...))
}

func checksumOf(body []byte) []byte {
	first := sha256.Sum256(body)
	second := sha256.Sum256(first[:])
	return second[:4]
}

func checksumValid(body, checksum []byte) bool {
	want := checksumOf(body)
	if len(want) != len(checksum) {
		return false
	}
	for i := range want {
		if want[i] != checksum[i] {
			return false
		}
	}
	return true
}

// Signature is a detached ECDSA signature over an order payload.
type Signature struct {
	sig *ecdsa.Signature
}

// Sign produces a deterministic (RFC 6979) signature of digest under priv.
func Sign(priv *secp256k1.PrivateKey, digest []byte) Signature {
	return Signature{sig: ecdsa.Sign(priv, digest)}
}

// Verify reports whether s is a valid signature of digest under pub.
func (s Signature) Verify(digest []byte, pub *secp256k1.PublicKey) bool {
	if s.sig == nil {
		return false
	}
	return s.sig.Verify(digest, pub)
}

// Serialize returns the DER encoding of the signature.
func (s Signature) Serialize() []byte {
	if s.sig == nil {
		return nil
	}
	return s.sig.Serialize()
}

// ParseSignature decodes a DER-encoded signature.
func ParseSignature(der []byte) (Signature, error) {
	sig, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return Signature{}, fmt.Errorf("colview/identity: parse signature: %w", err)
	}
	return Signature{sig: sig}, nil
}

// Authenticator decides whether an order's declared owner is authorized
// for the current call, the Go counterpart of
// check_account_authentication: the effective signer must equal the
// declared owner, or the calling application identifier must equal an
// application-owned owner.
type Authenticator struct {
	// AuthenticatedSigner is the end-user Owner that cryptographically
	// signed the current operation, if any.
	AuthenticatedSigner *Owner
	// AuthenticatedApplication is the calling application's Owner, if
	// this call arrived as a cross-application call.
	AuthenticatedApplication *Owner
}

// ErrIncorrectAuthentication mirrors MatchingEngineError::IncorrectAuthentication.
var ErrIncorrectAuthentication = errors.New("colview/identity: incorrect authentication")

// Authenticate implements the matching engine's authentication rule for
// the order's declared owner.
func (a Authenticator) Authenticate(declaredOwner Owner) error {
	if a.AuthenticatedSigner != nil && *a.AuthenticatedSigner == declaredOwner {
		return nil
	}
	if a.AuthenticatedApplication != nil && *a.AuthenticatedApplication == declaredOwner {
		return nil
	}
	return ErrIncorrectAuthentication
}
