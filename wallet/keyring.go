package wallet

import (
	"context"
	"crypto/ecdsa"
	"os"
	"strings"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
	"go.uber.org/zap"

	"secret-evoting/chain"
)

var (
	// ErrExtensionUnavailable means no keyring is configured to connect to.
	ErrExtensionUnavailable = errors.New("wallet keyring unavailable")
	// ErrChainNotEnabled means the keyring refused or has not yet enabled the chain.
	ErrChainNotEnabled = errors.New("chain not enabled in wallet")
)

// KeyringOptions configures where the keyring takes its mnemonic from and
// which account it derives.
type KeyringOptions struct {
	Mnemonic     string
	MnemonicFile string
	AccountIndex uint32
	CoinType     uint32
	Prefix       string
	// Chains the keyring agrees to enable.
	Chains []string
	// Encryption is chain.EncryptionSecret unless set to chain.EncryptionPlain.
	Encryption string
	// LCDURL is where the chain's tx key is read from.
	LCDURL         string
	RequestTimeout time.Duration
}

// Account is the public half of the active keyring account.
type Account struct {
	Address string `json:"address"`
	PubKey  []byte `json:"pubkey"`
	Index   uint32 `json:"index"`
}

// Keyring plays the role of the browser wallet extension: it holds a
// mnemonic, enables chains and hands out a signer for the active account.
type Keyring struct {
	mu      sync.RWMutex
	opts    KeyringOptions
	crypto  *CryptoService
	bus     evbus.Bus
	logger  *zap.Logger
	enabled map[string]bool
	key     *ecdsa.PrivateKey
	account Account
	// enc caches the encryption of the active account per chain.
	enc map[string]chain.EncryptionUtils
}

// NewKeyring loads the mnemonic and derives the configured account. A
// keyring without a mnemonic is still returned; it reports
// ErrExtensionUnavailable on every call.
func NewKeyring(opts KeyringOptions, bus evbus.Bus, logger *zap.Logger) (*Keyring, error) {
	k := &Keyring{
		opts:    opts,
		crypto:  NewCryptoService(opts.Prefix),
		bus:     bus,
		logger:  logger,
		enabled: make(map[string]bool),
		enc:     make(map[string]chain.EncryptionUtils),
	}
	if err := k.load(); err != nil && !errors.Is(err, ErrExtensionUnavailable) {
		return nil, err
	}
	return k, nil
}

// NewMnemonic generates a fresh 24 word mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", errors.Wrap(err, "generate entropy")
	}
	return bip39.NewMnemonic(entropy)
}

func (k *Keyring) load() error {
	mnemonic, err := k.readMnemonic()
	if err != nil {
		return err
	}
	if mnemonic == "" {
		k.mu.Lock()
		k.key = nil
		k.account = Account{}
		k.enc = make(map[string]chain.EncryptionUtils)
		k.mu.Unlock()
		return ErrExtensionUnavailable
	}

	key, err := k.derive(mnemonic, k.opts.AccountIndex)
	if err != nil {
		return err
	}
	pub := k.crypto.CompressPubKey(&key.PublicKey)
	addr, err := k.crypto.Address(pub)
	if err != nil {
		return err
	}

	k.mu.Lock()
	k.key = key
	k.account = Account{Address: addr, PubKey: pub, Index: k.opts.AccountIndex}
	k.enc = make(map[string]chain.EncryptionUtils)
	k.mu.Unlock()

	k.logger.Info("Keyring account loaded",
		zap.String("address", addr),
		zap.Uint32("index", k.opts.AccountIndex))
	return nil
}

func (k *Keyring) readMnemonic() (string, error) {
	if k.opts.Mnemonic != "" {
		return strings.TrimSpace(k.opts.Mnemonic), nil
	}
	if k.opts.MnemonicFile == "" {
		return "", nil
	}
	b, err := os.ReadFile(k.opts.MnemonicFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrapf(err, "read mnemonic file %s", k.opts.MnemonicFile)
	}
	return strings.Join(strings.Fields(string(b)), " "), nil
}

// derive follows m/44'/coin'/0'/0/index.
func (k *Keyring) derive(mnemonic string, index uint32) (*ecdsa.PrivateKey, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, errors.Wrap(err, "invalid mnemonic")
	}
	node, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "derive master key")
	}
	path := []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + k.opts.CoinType,
		bip32.FirstHardenedChild,
		0,
		index,
	}
	for _, idx := range path {
		if node, err = node.NewChildKey(idx); err != nil {
			return nil, errors.Wrapf(err, "derive child %d", idx)
		}
	}
	return k.crypto.PrivateKey(node.Key)
}

// Available reports whether the keyring has an account to offer.
func (k *Keyring) Available() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.key != nil
}

// Enable asks the keyring to allow access for chainID.
func (k *Keyring) Enable(_ context.Context, chainID string) error {
	if !k.Available() {
		return ErrExtensionUnavailable
	}
	allowed := len(k.opts.Chains) == 0
	for _, c := range k.opts.Chains {
		if c == chainID {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Wrapf(ErrChainNotEnabled, "chain %s", chainID)
	}

	k.mu.Lock()
	k.enabled[chainID] = true
	k.mu.Unlock()
	return nil
}

// Accounts lists the accounts exposed for chainID.
func (k *Keyring) Accounts(chainID string) ([]Account, error) {
	if err := k.checkEnabled(chainID); err != nil {
		return nil, err
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return []Account{k.account}, nil
}

// OfflineSigner returns a signer for the active account on chainID.
func (k *Keyring) OfflineSigner(chainID string) (chain.Signer, error) {
	if err := k.checkEnabled(chainID); err != nil {
		return nil, err
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return &keySigner{key: k.key, account: k.account, crypto: k.crypto}, nil
}

// EncryptionUtils returns the message encryption bound to chainID.
func (k *Keyring) EncryptionUtils(chainID string) (chain.EncryptionUtils, error) {
	if err := k.checkEnabled(chainID); err != nil {
		return nil, err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if enc, ok := k.enc[chainID]; ok {
		return enc, nil
	}
	enc, err := chain.NewEncryptionUtils(k.opts.Encryption, k.opts.LCDURL, k.opts.RequestTimeout,
		k.crypto.EncryptionSeed(k.key, chainID), k.crypto.GenerateNonce, k.logger.Named("enigma"))
	if err != nil {
		return nil, err
	}
	k.enc[chainID] = enc
	return enc, nil
}

// Reload re-reads the mnemonic and announces the change.
func (k *Keyring) Reload() error {
	err := k.load()
	NotifyKeystoreChanged(k.bus)
	if errors.Is(err, ErrExtensionUnavailable) {
		return nil
	}
	return err
}

// SwitchAccount derives another account index and announces the change.
func (k *Keyring) SwitchAccount(index uint32) error {
	k.mu.Lock()
	prev := k.opts.AccountIndex
	k.opts.AccountIndex = index
	k.mu.Unlock()

	if err := k.load(); err != nil {
		k.mu.Lock()
		k.opts.AccountIndex = prev
		k.mu.Unlock()
		return err
	}
	NotifyKeystoreChanged(k.bus)
	return nil
}

func (k *Keyring) checkEnabled(chainID string) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.key == nil {
		return ErrExtensionUnavailable
	}
	if !k.enabled[chainID] {
		return errors.Wrapf(ErrChainNotEnabled, "chain %s", chainID)
	}
	return nil
}

type keySigner struct {
	key     *ecdsa.PrivateKey
	account Account
	crypto  *CryptoService
}

func (s *keySigner) Address() string { return s.account.Address }
func (s *keySigner) PubKey() []byte  { return s.account.PubKey }

func (s *keySigner) Sign(signBytes []byte) ([]byte, error) {
	return s.crypto.Sign(signBytes, s.key)
}
