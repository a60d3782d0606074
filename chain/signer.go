package chain

import "context"

// Signer signs transactions for one account. It is what the wallet exposes as
// its offline signer.
type Signer interface {
	Address() string
	// PubKey returns the 33-byte compressed secp256k1 public key.
	PubKey() []byte
	// Sign returns the 64-byte r||s signature over sha256(signBytes).
	Sign(signBytes []byte) ([]byte, error)
}

// EncryptionUtils encrypts contract messages for the chain and decrypts its
// answers. Secret Network wallets provide one bound to the chain id.
type EncryptionUtils interface {
	Encrypt(ctx context.Context, codeHash string, msg []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte, nonce []byte) ([]byte, error)
}

// PlainUtils passes messages through unchanged, for chains and test nets that
// accept plaintext contract messages.
type PlainUtils struct{}

func (PlainUtils) Encrypt(_ context.Context, _ string, msg []byte) ([]byte, error) {
	return msg, nil
}

func (PlainUtils) Decrypt(_ context.Context, ciphertext []byte, _ []byte) ([]byte, error) {
	return ciphertext, nil
}
