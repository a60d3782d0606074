package wallet

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // cosmos addresses are defined over ripemd160

	"secret-evoting/chain"
)

type CryptoService struct {
	prefix string
}

func NewCryptoService(prefix string) *CryptoService {
	return &CryptoService{prefix: prefix}
}

// PrivateKey parses a raw 32-byte secp256k1 private key
func (cs *CryptoService) PrivateKey(raw []byte) (*ecdsa.PrivateKey, error) {
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}
	return key, nil
}

// GenerateNonce generates a random 32-byte nonce for one encrypted contract message
func (cs *CryptoService) GenerateNonce() ([]byte, error) {
	nonce := make([]byte, 32)
	_, err := rand.Read(nonce)
	return nonce, err
}

// EncryptionSeed derives the account's 32-byte x25519 seed for chainID
func (cs *CryptoService) EncryptionSeed(key *ecdsa.PrivateKey, chainID string) []byte {
	return cs.HashData(append(crypto.FromECDSA(key), chainID...))
}

// CompressPubKey serializes public key to its 33-byte compressed form
func (cs *CryptoService) CompressPubKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return crypto.CompressPubkey(pub)
}

// Address derives the bech32 account address of a compressed public key
func (cs *CryptoService) Address(compressed []byte) (string, error) {
	if len(compressed) != 33 {
		return "", errors.Errorf("compressed public key must be 33 bytes, got %d", len(compressed))
	}
	sha := sha256.Sum256(compressed)
	h := ripemd160.New()
	h.Write(sha[:])
	return chain.EncodeAddress(cs.prefix, h.Sum(nil))
}

// Sign creates a 64-byte r||s signature of sha256(data)
func (cs *CryptoService) Sign(data []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(cs.HashData(data), privateKey)
	if err != nil {
		return nil, err
	}
	return sig[:64], nil
}

// VerifySignature verifies a 64-byte signature of data against a compressed public key
func (cs *CryptoService) VerifySignature(data, signature, compressed []byte) bool {
	if len(signature) != 64 {
		return false
	}
	return crypto.VerifySignature(compressed, cs.HashData(data), signature)
}

// HashData creates a SHA-256 hash of data
func (cs *CryptoService) HashData(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}
