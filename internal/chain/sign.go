package chain

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// ResultHash is the deterministic message every non-winner signs to attest
// a race result. Binding the contract address, chain id and creation
// timestamp prevents a signature from being replayed against another game
// or deployment.
func ResultHash(gameID, winner, contractAddress string, chainID, createdAt int64) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(gameID))
	h.Write([]byte(winner))
	h.Write([]byte(contractAddress))

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(chainID))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(createdAt))
	h.Write(buf[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Signer produces result attestations for one wallet.
type Signer interface {
	Address() string
	SignResult(hash [32]byte) ([]byte, error)
}

// LocalSigner holds an in-process key pair. The signature layout is the
// 32-byte public key followed by the ed25519 signature, so a verifier
// needs nothing beyond the blob and the signer's address.
type LocalSigner struct {
	addr string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewLocalSigner generates a fresh key pair.
func NewLocalSigner() (*LocalSigner, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &LocalSigner{addr: AddressFromKey(pub), priv: priv, pub: pub}, nil
}

func (s *LocalSigner) Address() string { return s.addr }

func (s *LocalSigner) SignResult(hash [32]byte) ([]byte, error) {
	sig := ed25519.Sign(s.priv, hash[:])
	out := make([]byte, 0, ed25519.PublicKeySize+len(sig))
	out = append(out, s.pub...)
	return append(out, sig...), nil
}

// AddressFromKey derives the wallet-style address for a public key: the
// last 20 bytes of its keccak hash, hex encoded.
func AddressFromKey(pub ed25519.PublicKey) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub)
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[len(sum)-20:])
}

// VerifyResult checks that blob attests hash and was produced by the key
// behind signerAddress.
func VerifyResult(signerAddress string, hash [32]byte, blob []byte) error {
	if len(blob) != ed25519.PublicKeySize+ed25519.SignatureSize {
		return fmt.Errorf("signature: bad length %d", len(blob))
	}
	pub := ed25519.PublicKey(blob[:ed25519.PublicKeySize])
	if AddressFromKey(pub) != signerAddress {
		return fmt.Errorf("signature: key does not match %s", signerAddress)
	}
	if !ed25519.Verify(pub, hash[:], blob[ed25519.PublicKeySize:]) {
		return fmt.Errorf("signature: verification failed")
	}
	return nil
}
