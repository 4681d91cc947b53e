// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Set of errors returned when verifying signatures.
var (
	ErrInvalidIdentity  = errors.New("invalid identity")
	ErrInvalidSignature = errors.New("invalid signature")
)

// utxoStamp is prepended to every message before it is signed. This makes
// it clear the signature was produced for this ledger and not for some
// other system using the same keys.
const utxoStamp = "\x19UTXO Signed Message:\n32"

// =============================================================================

// Identity represents the public identity of a participant. It is the hex
// encoding of the uncompressed secp256k1 public key so two identities are
// the same only if the keys are byte for byte the same.
type Identity string

// ToIdentity validates the string is a well formed public key and returns
// it as an Identity.
func ToIdentity(hex string) (Identity, error) {
	id := Identity(hex)
	if _, err := id.PublicKey(); err != nil {
		return "", err
	}

	return id, nil
}

// PublicKeyToIdentity converts the public key to an identity.
func PublicKeyToIdentity(pk ecdsa.PublicKey) Identity {
	return Identity(hexutil.Encode(crypto.FromECDSAPub(&pk)))
}

// PublicKey converts the identity back into a public key.
func (id Identity) PublicKey() (*ecdsa.PublicKey, error) {
	data, err := hexutil.Decode(string(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIdentity, err)
	}

	pk, err := crypto.UnmarshalPubkey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIdentity, err)
	}

	return pk, nil
}

// Short returns a shortened version of the identity for logging.
func (id Identity) Short() string {
	const size = 12
	if len(id) <= size {
		return string(id)
	}
	return string(id[len(id)-size:])
}

// =============================================================================

// Hash returns the sha256 digest of the message as a hex encoded string.
func Hash(message string) string {
	hash := sha256.Sum256([]byte(message))
	return hexutil.Encode(hash[:])
}

// HashBytes returns the raw sha256 digest of the message.
func HashBytes(message string) []byte {
	hash := sha256.Sum256([]byte(message))
	return hash[:]
}

// ToBitString expands every byte of the digest into its 8 bit unsigned
// binary form, most significant bit first. Leading zero bits of the digest
// become leading '0' characters.
func ToBitString(digest []byte) string {
	var b strings.Builder
	b.Grow(len(digest) * 8)

	for _, v := range digest {
		fmt.Fprintf(&b, "%08b", v)
	}

	return b.String()
}

// =============================================================================

// Sign uses the specified private key to sign the message. The signature is
// returned hex encoded in the [R|S|V] format.
func Sign(message string, privateKey *ecdsa.PrivateKey) (string, error) {

	// Prepare the data for signing.
	data := stamp(message)

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return "", err
	}

	// Extract the public key from the data and the signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return "", err
	}

	// Check the public key extracted from the data and signature.
	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return "", ErrInvalidSignature
	}

	return hexutil.Encode(sig), nil
}

// Verify checks the signature was produced over the message by the private
// key that belongs to the specified identity.
func Verify(id Identity, sig string, message string) error {
	pubBytes, err := hexutil.Decode(string(id))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidIdentity, err)
	}

	sigBytes, err := hexutil.Decode(sig)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	if len(sigBytes) != crypto.SignatureLength {
		return fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sigBytes))
	}

	// Check the recovery id is either 0 or 1.
	if v := sigBytes[crypto.RecoveryIDOffset]; v != 0 && v != 1 {
		return fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, v)
	}

	if !crypto.VerifySignature(pubBytes, stamp(message), sigBytes[:crypto.RecoveryIDOffset]) {
		return ErrInvalidSignature
	}

	return nil
}

// FromSignature extracts the identity of the account that signed the message.
func FromSignature(sig string, message string) (Identity, error) {
	sigBytes, err := hexutil.Decode(sig)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	// NOTE: If the same exact message for the given signature is not provided
	// we will get the wrong identity back. The public key is being extracted
	// from the data and signature.

	publicKey, err := crypto.SigToPub(stamp(message), sigBytes)
	if err != nil {
		return "", err
	}

	return PublicKeyToIdentity(*publicKey), nil
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this message with
// the stamp embedded into the final hash.
func stamp(message string) []byte {

	// Hash the message into a 32 byte array. This will provide
	// a data length consistency with all messages.
	txHash := crypto.Keccak256([]byte(message))

	// Hash the stamp and txHash together in a final 32 byte array
	// that represents the message.
	return crypto.Keccak256([]byte(utxoStamp), txHash)
}
