package wallet

import (
	"context"
	"sync"

	evbus "github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"secret-evoting/chain"
	"secret-evoting/models"
)

// Extension is what a wallet has to offer for a session to be built on it.
type Extension interface {
	Enable(ctx context.Context, chainID string) error
	OfflineSigner(chainID string) (chain.Signer, error)
	EncryptionUtils(chainID string) (chain.EncryptionUtils, error)
}

// Session is a wallet session together with the chain client bound to it.
// Client is nil unless the session is connected.
type Session struct {
	models.WalletSession
	Client *chain.Client
}

// Provider builds sessions from an Extension and rebuilds them whenever the
// keystore changes.
type Provider struct {
	ext    Extension
	cfg    chain.Config
	bus    evbus.Bus
	logger *zap.Logger

	mu       sync.Mutex
	listener func(*Session)
	handler  func()
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewProvider(ext Extension, cfg chain.Config, bus evbus.Bus, logger *zap.Logger) *Provider {
	return &Provider{
		ext:    ext,
		cfg:    cfg,
		bus:    bus,
		logger: logger,
	}
}

// Connect enables the chain in the wallet and builds a signing client for
// its active account. The returned session is never nil; on failure it has
// status WalletError.
func (p *Provider) Connect(ctx context.Context) (*Session, error) {
	session, err := p.connect(ctx)
	if err != nil {
		p.logger.Warn("Wallet connection failed", zap.Error(err))
		return &Session{WalletSession: models.WalletSession{
			Status: models.WalletError,
			Error:  err.Error(),
		}}, err
	}
	p.logger.Info("Wallet connected", zap.String("address", session.Address))
	return session, nil
}

func (p *Provider) connect(ctx context.Context) (*Session, error) {
	if p.ext == nil {
		return nil, ErrExtensionUnavailable
	}
	if err := p.ext.Enable(ctx, p.cfg.ChainID); err != nil {
		return nil, errors.Wrap(err, "enable chain")
	}
	signer, err := p.ext.OfflineSigner(p.cfg.ChainID)
	if err != nil {
		return nil, errors.Wrap(err, "get offline signer")
	}
	enc, err := p.ext.EncryptionUtils(p.cfg.ChainID)
	if err != nil {
		return nil, errors.Wrap(err, "get encryption utils")
	}

	client := chain.NewClient(p.cfg, signer, enc, p.logger.Named("chain"))
	return &Session{
		WalletSession: models.WalletSession{
			Status:  models.WalletConnected,
			Address: signer.Address(),
		},
		Client: client,
	}, nil
}

// Start subscribes to keystore changes. On each change listener first
// receives a connecting session and then the result of a fresh Connect.
func (p *Provider) Start(ctx context.Context, listener func(*Session)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handler != nil {
		return errors.New("provider already started")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.listener = listener
	p.handler = p.onKeystoreChanged
	if err := p.bus.SubscribeAsync(TopicKeystoreChanged, p.handler, true); err != nil {
		p.handler = nil
		p.cancel()
		return errors.Wrap(err, "subscribe to keystore changes")
	}
	return nil
}

// Stop unsubscribes and waits for a reconnect in progress to finish.
func (p *Provider) Stop() error {
	p.mu.Lock()
	handler := p.handler
	p.handler = nil
	cancel := p.cancel
	p.mu.Unlock()

	if handler == nil {
		return nil
	}
	cancel()
	err := p.bus.Unsubscribe(TopicKeystoreChanged, handler)
	p.bus.WaitAsync()
	return err
}

func (p *Provider) onKeystoreChanged() {
	p.mu.Lock()
	ctx, listener := p.ctx, p.listener
	p.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	p.logger.Info("Keystore changed, reconnecting wallet")
	listener(&Session{WalletSession: models.WalletSession{Status: models.WalletConnecting}})
	session, _ := p.Connect(ctx)
	if ctx.Err() != nil {
		return
	}
	listener(session)
}
