package chain

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/miscreant/miscreant.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// Encryption modes accepted by NewEncryptionUtils.
const (
	EncryptionSecret = "secret"
	EncryptionPlain  = "plain"
)

const (
	nonceSize  = 32
	x25519Size = curve25519.PointSize
	txKeyPath  = "/registration/v1beta1/tx-key"
)

// hkdfSalt is fixed by the chain's enclave.
var hkdfSalt, _ = hex.DecodeString("000000000000000000024bead8df69990852c202db0e0097c1a12ea637d7e96d")

// ErrShortCiphertext is returned for encrypted messages without room for the nonce and key.
var ErrShortCiphertext = errors.New("encrypted message too short")

// NonceSource returns a fresh 32-byte nonce per message.
type NonceSource func() ([]byte, error)

// SecretUtils encrypts contract messages for the chain's enclave. Every
// message gets its own nonce; the shared key is derived from the account's
// x25519 key and the chain's transaction key.
type SecretUtils struct {
	lcd     *lcdClient
	privKey []byte
	pubKey  []byte
	nonce   NonceSource
	logger  *zap.Logger

	mu    sync.Mutex
	txKey []byte
}

// NewEncryptionUtils returns the message encryption for mode. seed keys the
// account's x25519 pair and is only used by EncryptionSecret.
func NewEncryptionUtils(mode, lcdURL string, timeout time.Duration, seed []byte, nonce NonceSource, logger *zap.Logger) (EncryptionUtils, error) {
	switch mode {
	case EncryptionPlain:
		return PlainUtils{}, nil
	case EncryptionSecret, "":
		return NewSecretUtils(lcdURL, timeout, seed, nonce, logger)
	default:
		return nil, errors.Errorf("unknown encryption mode %q", mode)
	}
}

func NewSecretUtils(lcdURL string, timeout time.Duration, seed []byte, nonce NonceSource, logger *zap.Logger) (*SecretUtils, error) {
	if len(seed) != x25519Size {
		return nil, errors.Errorf("encryption seed must be %d bytes, got %d", x25519Size, len(seed))
	}
	priv := append([]byte(nil), seed...)
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, errors.Wrap(err, "derive encryption public key")
	}
	return &SecretUtils{
		lcd:     newLCDClient(lcdURL, timeout, logger),
		privKey: priv,
		pubKey:  pub,
		nonce:   nonce,
		logger:  logger,
	}, nil
}

// PubKey returns the account's x25519 public key.
func (u *SecretUtils) PubKey() []byte {
	return u.pubKey
}

// Encrypt seals codeHash followed by msg and returns nonce || pubkey || ciphertext.
func (u *SecretUtils) Encrypt(ctx context.Context, codeHash string, msg []byte) ([]byte, error) {
	nonce, err := u.nonce()
	if err != nil {
		return nil, errors.Wrap(err, "generate nonce")
	}
	if len(nonce) != nonceSize {
		return nil, errors.Errorf("nonce must be %d bytes, got %d", nonceSize, len(nonce))
	}
	aead, err := u.cipher(ctx, nonce)
	if err != nil {
		return nil, err
	}

	plaintext := append([]byte(codeHash), msg...)
	sealed, err := aead.Seal(nil, plaintext, []byte{})
	if err != nil {
		return nil, errors.Wrap(err, "seal message")
	}

	out := make([]byte, 0, nonceSize+x25519Size+len(sealed))
	out = append(out, nonce...)
	out = append(out, u.pubKey...)
	return append(out, sealed...), nil
}

// Decrypt opens an answer to a message that was encrypted with nonce.
func (u *SecretUtils) Decrypt(ctx context.Context, ciphertext []byte, nonce []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return ciphertext, nil
	}
	if len(nonce) != nonceSize {
		return nil, errors.Wrapf(ErrShortCiphertext, "nonce of %d bytes", len(nonce))
	}
	aead, err := u.cipher(ctx, nonce)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, ciphertext, []byte{})
	if err != nil {
		return nil, errors.Wrap(err, "open answer")
	}
	return plain, nil
}

func (u *SecretUtils) cipher(ctx context.Context, nonce []byte) (*miscreant.Cipher, error) {
	key, err := u.encryptionKey(ctx, nonce)
	if err != nil {
		return nil, err
	}
	aead, err := miscreant.NewAESCMACSIV(key)
	if err != nil {
		return nil, errors.Wrap(err, "create AES-SIV cipher")
	}
	return aead, nil
}

func (u *SecretUtils) encryptionKey(ctx context.Context, nonce []byte) ([]byte, error) {
	txKey, err := u.TxKey(ctx)
	if err != nil {
		return nil, err
	}
	shared, err := curve25519.X25519(u.privKey, txKey)
	if err != nil {
		return nil, errors.Wrap(err, "derive shared secret")
	}

	secret := append(shared, nonce...)
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, hkdfSalt, nil), key); err != nil {
		return nil, errors.Wrap(err, "expand encryption key")
	}
	return key, nil
}

// TxKey returns the chain's transaction encryption key. It is fetched once.
func (u *SecretUtils) TxKey(ctx context.Context) ([]byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.txKey != nil {
		return u.txKey, nil
	}

	var resp struct {
		Key string `json:"key"`
	}
	if err := u.lcd.get(ctx, txKeyPath, nil, &resp); err != nil {
		return nil, errors.Wrap(err, "get chain tx key")
	}
	key, err := base64.StdEncoding.DecodeString(resp.Key)
	if err != nil {
		return nil, errors.Wrap(err, "decode chain tx key")
	}
	if len(key) != x25519Size {
		return nil, errors.Errorf("chain tx key must be %d bytes, got %d", x25519Size, len(key))
	}
	u.txKey = key
	u.logger.Debug("Fetched chain tx key")
	return key, nil
}
