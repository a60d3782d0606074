package service

import (
	"context"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"secret-evoting/chain"
	"secret-evoting/config"
	"secret-evoting/models"
	"secret-evoting/storage"
	"secret-evoting/wallet"
	"secret-evoting/workflow"
)

// EVotingService wires the wallet, the chain client, the receipt store
// and the workflow runner together.
type EVotingService struct {
	cfg      *config.Config
	logger   *zap.Logger
	bus      evbus.Bus
	keyring  *wallet.Keyring
	provider *wallet.Provider
	receipts *storage.Receipts
	runner   *workflow.Runner
	metrics  *MetricsCollector
	now      func() time.Time

	mu      sync.Mutex
	started bool
	stopped bool
}

// Info describes the chain and wallet the service talks to.
type Info struct {
	ChainID       string               `json:"chain_id"`
	LCDURL        string               `json:"lcd_url"`
	CodeID        uint64               `json:"code_id"`
	CodeHash      string               `json:"code_hash"`
	AddressPrefix string               `json:"address_prefix"`
	StorageDriver string               `json:"storage_driver"`
	Wallet        models.WalletSession `json:"wallet"`
	AccountIndex  uint32               `json:"account_index"`
}

// NewEVotingService builds every component from cfg. Nothing talks to the
// chain until Start.
func NewEVotingService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*EVotingService, error) {
	bus := wallet.NewBus()

	keyring, err := wallet.NewKeyring(wallet.KeyringOptions{
		Mnemonic:     cfg.Wallet.Mnemonic,
		MnemonicFile: cfg.Wallet.MnemonicFile,
		AccountIndex: cfg.Wallet.AccountIndex,
		CoinType:     cfg.Wallet.CoinType,
		Prefix:       cfg.Chain.Bech32Prefix,
		Chains:       []string{cfg.Chain.ID},

		Encryption:     cfg.Chain.Encryption,
		LCDURL:         cfg.Chain.LCDURL,
		RequestTimeout: cfg.Chain.RequestTimeout,
	}, bus, logger.Named("keyring"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize keyring")
	}

	provider := wallet.NewProvider(keyring, chainConfig(cfg), bus, logger.Named("wallet"))

	receipts, err := storage.Open(ctx, storage.Options{
		Driver:    cfg.Storage.Driver,
		Path:      cfg.Storage.Path,
		RedisAddr: cfg.Storage.RedisAddr,
	}, logger.Named("storage"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open receipt store")
	}

	metrics := NewMetricsCollector()
	runner := workflow.NewRunner(workflow.Options{
		Settings: workflow.Settings{
			CodeHash:      cfg.Contract.CodeHash,
			AddressPrefix: cfg.Chain.Bech32Prefix,
		},
		AlertShowTime: cfg.AlertShowTime,
	}, receipts, metrics, logger.Named("workflow"))

	return &EVotingService{
		cfg:      cfg,
		logger:   logger,
		bus:      bus,
		keyring:  keyring,
		provider: provider,
		receipts: receipts,
		runner:   runner,
		metrics:  metrics,
		now:      time.Now,
	}, nil
}

func chainConfig(cfg *config.Config) chain.Config {
	return chain.Config{
		ChainID:        cfg.Chain.ID,
		LCDURL:         cfg.Chain.LCDURL,
		FeeDenom:       cfg.Chain.FeeDenom,
		GasPrice:       cfg.Chain.GasPrice,
		RequestTimeout: cfg.Chain.RequestTimeout,
		ConfirmTimeout: cfg.Chain.ConfirmTimeout,
		PollInterval:   cfg.Chain.PollInterval,
	}
}

// Start runs the workflow, connects the wallet once and then follows
// keystore changes.
func (s *EVotingService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("service already started")
	}
	s.started = true
	s.mu.Unlock()

	s.runner.Start(ctx)

	session, _ := s.provider.Connect(ctx)
	if _, err := s.runner.Apply(ctx, s.walletUpdated(session)); err != nil {
		return errors.Wrap(err, "apply wallet session")
	}

	return s.provider.Start(ctx, func(session *wallet.Session) {
		if err := s.runner.Dispatch(s.walletUpdated(session)); err != nil {
			s.logger.Debug("Wallet update dropped", zap.Error(err))
		}
	})
}

func (s *EVotingService) walletUpdated(session *wallet.Session) workflow.WalletUpdated {
	ev := workflow.WalletUpdated{Session: session.WalletSession}
	if session.Client != nil {
		adapter := chain.NewAdapter(session.Client, s.cfg.Contract.CodeID, s.cfg.Contract.CodeHash)
		ev.Contracts = instrument(adapter, s.metrics)
	}
	return ev
}

// Stop shuts the service down. It is safe to call more than once.
func (s *EVotingService) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	var firstErr error
	if err := s.provider.Stop(); err != nil {
		firstErr = errors.Wrap(err, "stop wallet provider")
	}
	s.runner.Stop()
	if err := s.receipts.Close(); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "close receipt store")
	}
	return firstErr
}

// Reconnect re-reads the keystore and reconnects the wallet.
func (s *EVotingService) Reconnect() error {
	return s.keyring.Reload()
}

// SwitchAccount makes another derived account the active one.
func (s *EVotingService) SwitchAccount(index uint32) error {
	return s.keyring.SwitchAccount(index)
}

func (s *EVotingService) Info() Info {
	st := s.runner.State()
	return Info{
		ChainID:       s.cfg.Chain.ID,
		LCDURL:        s.cfg.Chain.LCDURL,
		CodeID:        s.cfg.Contract.CodeID,
		CodeHash:      s.cfg.Contract.CodeHash,
		AddressPrefix: s.cfg.Chain.Bech32Prefix,
		StorageDriver: s.cfg.Storage.Driver,
		Wallet:        st.Wallet,
		AccountIndex:  s.cfg.Wallet.AccountIndex,
	}
}

func (s *EVotingService) Metrics() *MetricsCollector {
	return s.metrics
}

func (s *EVotingService) State() workflow.State {
	return s.runner.State()
}

// View renders the current state as the page shows it.
func (s *EVotingService) View() workflow.View {
	return workflow.NewView(s.runner.State(), s.now())
}

// Subscribe follows state changes. See workflow.Runner.Subscribe.
func (s *EVotingService) Subscribe() (<-chan workflow.State, func()) {
	return s.runner.Subscribe()
}

// WaitForWallet blocks until the wallet is no longer connecting.
func (s *EVotingService) WaitForWallet(ctx context.Context) (models.WalletSession, error) {
	st, err := s.runner.WaitFor(ctx, func(st workflow.State) bool {
		return st.Wallet.Status != models.WalletConnecting
	})
	return st.Wallet, err
}

// Search looks up a contract and waits for the snapshot or the failure.
// An empty address searches for the current search text.
func (s *EVotingService) Search(ctx context.Context, address string) (workflow.State, error) {
	return s.applyAndSettle(ctx, workflow.SearchRequested{Address: address})
}

func (s *EVotingService) SetSearchText(ctx context.Context, text string) (workflow.State, error) {
	return s.runner.Apply(ctx, workflow.SearchTextChanged{Text: text})
}

func (s *EVotingService) Refresh(ctx context.Context) (workflow.State, error) {
	return s.applyAndSettle(ctx, workflow.RefreshRequested{})
}

func (s *EVotingService) Return(ctx context.Context) (workflow.State, error) {
	return s.runner.Apply(ctx, workflow.ReturnRequested{})
}

// Vote submits a vote for candidateID on the loaded contract and waits
// for the transaction to settle. It fails without dispatching anything
// when the vote button would be disabled.
func (s *EVotingService) Vote(ctx context.Context, candidateID int) (workflow.State, error) {
	st := s.runner.State()
	if err := workflow.CanVote(st, candidateID, s.now()); err != nil {
		return st, err
	}
	return s.applyAndSettle(ctx, workflow.VoteRequested{CandidateID: candidateID})
}

func (s *EVotingService) EditDraft(ctx context.Context, edit workflow.DraftEdited) (workflow.State, error) {
	return s.runner.Apply(ctx, edit)
}

// Create instantiates a contract from the current draft and waits for it.
func (s *EVotingService) Create(ctx context.Context) (workflow.State, error) {
	return s.applyAndSettle(ctx, workflow.CreateRequested{})
}

func (s *EVotingService) DismissAlert(ctx context.Context) (workflow.State, error) {
	return s.runner.Apply(ctx, workflow.AlertDismissed{})
}

func (s *EVotingService) applyAndSettle(ctx context.Context, ev workflow.Event) (workflow.State, error) {
	if _, err := s.runner.Apply(ctx, ev); err != nil {
		return s.runner.State(), err
	}
	return s.runner.WaitFor(ctx, workflow.Settled)
}
