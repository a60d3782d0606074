package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"secret-evoting/models"
)

// Config holds what a Client needs to reach and pay the chain.
type Config struct {
	ChainID        string
	LCDURL         string
	FeeDenom       string
	GasPrice       float64
	RequestTimeout time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// QueryRequest is a read-only contract query.
type QueryRequest struct {
	ContractAddress string
	CodeHash        string
	Query           interface{}
}

// ExecuteRequest is a contract execution signed by the client's account.
type ExecuteRequest struct {
	ContractAddress string
	CodeHash        string
	Msg             interface{}
	GasLimit        uint64
}

// InstantiateRequest creates a contract from stored code.
type InstantiateRequest struct {
	CodeID   uint64
	CodeHash string
	InitMsg  interface{}
	Label    string
	GasLimit uint64
}

// Client is a signing client bound to one wallet account.
type Client struct {
	lcd    *lcdClient
	cfg    Config
	signer Signer
	enc    EncryptionUtils
	logger *zap.Logger
}

// NewClient creates a client for signer on the chain described by cfg.
func NewClient(cfg Config, signer Signer, enc EncryptionUtils, logger *zap.Logger) *Client {
	if enc == nil {
		enc = PlainUtils{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	return &Client{
		lcd:    newLCDClient(cfg.LCDURL, cfg.RequestTimeout, logger),
		cfg:    cfg,
		signer: signer,
		enc:    enc,
		logger: logger.With(zap.String("account", signer.Address())),
	}
}

// Address returns the account the client signs for.
func (c *Client) Address() string {
	return c.signer.Address()
}

// ChainID returns the chain the client is bound to.
func (c *Client) ChainID() string {
	return c.cfg.ChainID
}

// QueryContract runs a smart query and returns the raw JSON answer.
func (c *Client) QueryContract(ctx context.Context, req QueryRequest) (json.RawMessage, error) {
	msg, err := json.Marshal(req.Query)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedMessage, err.Error())
	}
	encrypted, err := c.enc.Encrypt(ctx, req.CodeHash, msg)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt query")
	}

	params := url.Values{}
	params.Set("query", base64.StdEncoding.EncodeToString(encrypted))

	var resp struct {
		Data string `json:"data"`
	}
	path := "/compute/v1beta1/query/" + url.PathEscape(req.ContractAddress)
	if err := c.lcd.get(ctx, path, params, &resp); err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return nil, &ContractError{Status: se.Status, Message: contractMessage(se.Message)}
		}
		return nil, errors.Wrapf(err, "query contract %s", req.ContractAddress)
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decode query data")
	}
	nonce := encrypted
	if len(nonce) > 32 {
		nonce = nonce[:32]
	}
	plain, err := c.enc.Decrypt(ctx, raw, nonce)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt query answer")
	}
	return decodeAnswer(plain)
}

// ExecuteContract signs, broadcasts and waits for a contract execution.
func (c *Client) ExecuteContract(ctx context.Context, req ExecuteRequest) (*models.TxResult, error) {
	msg, err := json.Marshal(req.Msg)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedMessage, err.Error())
	}
	encrypted, err := c.enc.Encrypt(ctx, req.CodeHash, msg)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt execute msg")
	}
	_, contract, err := DecodeAddress(req.ContractAddress)
	if err != nil {
		return nil, err
	}
	_, sender, err := DecodeAddress(c.signer.Address())
	if err != nil {
		return nil, err
	}

	anyMsg := encodeAny(typeURLExecute, encodeExecuteMsg(sender, contract, encrypted, nil))
	return c.signAndBroadcast(ctx, anyMsg, req.GasLimit)
}

// InstantiateContract signs, broadcasts and waits for a contract instantiation.
func (c *Client) InstantiateContract(ctx context.Context, req InstantiateRequest) (*models.TxResult, error) {
	msg, err := json.Marshal(req.InitMsg)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedMessage, err.Error())
	}
	encrypted, err := c.enc.Encrypt(ctx, req.CodeHash, msg)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt init msg")
	}
	_, sender, err := DecodeAddress(c.signer.Address())
	if err != nil {
		return nil, err
	}

	anyMsg := encodeAny(typeURLInstantiate, encodeInstantiateMsg(sender, req.CodeID, req.Label, encrypted, nil))
	return c.signAndBroadcast(ctx, anyMsg, req.GasLimit)
}

// Account returns the account number and sequence of address.
func (c *Client) Account(ctx context.Context, address string) (uint64, uint64, error) {
	var resp struct {
		Account struct {
			AccountNumber string `json:"account_number"`
			Sequence      string `json:"sequence"`
			BaseAccount   *struct {
				AccountNumber string `json:"account_number"`
				Sequence      string `json:"sequence"`
			} `json:"base_account"`
		} `json:"account"`
	}
	if err := c.lcd.get(ctx, "/cosmos/auth/v1beta1/accounts/"+url.PathEscape(address), nil, &resp); err != nil {
		return 0, 0, errors.Wrapf(err, "get account %s", address)
	}

	number, sequence := resp.Account.AccountNumber, resp.Account.Sequence
	if base := resp.Account.BaseAccount; base != nil {
		number, sequence = base.AccountNumber, base.Sequence
	}
	n, err := parseUint(number)
	if err != nil {
		return 0, 0, errors.Wrap(err, "parse account number")
	}
	s, err := parseUint(sequence)
	if err != nil {
		return 0, 0, errors.Wrap(err, "parse sequence")
	}
	return n, s, nil
}

func (c *Client) signAndBroadcast(ctx context.Context, anyMsg []byte, gasLimit uint64) (*models.TxResult, error) {
	accountNumber, sequence, err := c.Account(ctx, c.signer.Address())
	if err != nil {
		return nil, err
	}

	body := encodeTxBody([][]byte{anyMsg}, "")
	authInfo := encodeAuthInfo(c.signer.PubKey(), sequence, FeeFor(gasLimit, c.cfg.GasPrice, c.cfg.FeeDenom), gasLimit)
	sig, err := c.signer.Sign(encodeSignDoc(body, authInfo, c.cfg.ChainID, accountNumber))
	if err != nil {
		return nil, errors.Wrap(err, "sign tx")
	}

	req := map[string]string{
		"tx_bytes": base64.StdEncoding.EncodeToString(encodeTxRaw(body, authInfo, sig)),
		"mode":     "BROADCAST_MODE_SYNC",
	}
	var resp struct {
		TxResponse txResponse `json:"tx_response"`
	}
	if err := c.lcd.post(ctx, "/cosmos/tx/v1beta1/txs", req, &resp); err != nil {
		return nil, errors.Wrap(err, "broadcast tx")
	}
	if resp.TxResponse.Code != 0 {
		return nil, resp.TxResponse.err()
	}

	c.logger.Info("Transaction broadcast",
		zap.String("tx_hash", resp.TxResponse.TxHash),
		zap.Uint64("gas_limit", gasLimit))

	return c.WaitTx(ctx, resp.TxResponse.TxHash)
}

// WaitTx polls for a broadcast transaction until it is included in a block.
func (c *Client) WaitTx(ctx context.Context, hash string) (*models.TxResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var resp struct {
			TxResponse txResponse `json:"tx_response"`
		}
		err := c.lcd.get(ctx, "/cosmos/tx/v1beta1/txs/"+url.PathEscape(hash), nil, &resp)
		if err == nil {
			result, err := resp.TxResponse.result()
			if err != nil {
				return nil, err
			}
			if result.Code != 0 {
				return result, resp.TxResponse.err()
			}
			return result, nil
		}
		var se *StatusError
		if !errors.As(err, &se) || (se.Status != http.StatusNotFound && se.Status != http.StatusBadRequest) {
			if ctx.Err() == nil {
				return nil, errors.Wrapf(err, "get tx %s", hash)
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, errors.Wrapf(ErrTxTimeout, "tx %s", hash)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

type txResponse struct {
	Height    string  `json:"height"`
	TxHash    string  `json:"txhash"`
	Codespace string  `json:"codespace"`
	Code      uint32  `json:"code"`
	RawLog    string  `json:"raw_log"`
	GasUsed   string  `json:"gas_used"`
	Logs      []txLog `json:"logs"`
	Events    []event `json:"events"`
}

type txLog struct {
	MsgIndex int     `json:"msg_index"`
	Events   []event `json:"events"`
}

type event struct {
	Type       string      `json:"type"`
	Attributes []attribute `json:"attributes"`
}

type attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (r txResponse) err() error {
	return &TxError{TxHash: r.TxHash, Code: r.Code, Codespace: r.Codespace, Log: contractMessage(r.RawLog)}
}

func (r txResponse) result() (*models.TxResult, error) {
	height, err := parseUint(r.Height)
	if err != nil {
		return nil, errors.Wrap(err, "parse tx height")
	}
	gasUsed, err := parseUint(r.GasUsed)
	if err != nil {
		return nil, errors.Wrap(err, "parse gas used")
	}
	return &models.TxResult{
		TxHash:   r.TxHash,
		Code:     r.Code,
		Height:   int64(height),
		GasUsed:  int64(gasUsed),
		RawLog:   r.RawLog,
		ArrayLog: r.arrayLog(),
	}, nil
}

// arrayLog flattens the per message logs. Newer nodes leave logs empty and
// tag top level events with a msg_index attribute instead.
func (r txResponse) arrayLog() []models.LogEntry {
	var out []models.LogEntry
	if len(r.Logs) > 0 {
		for _, l := range r.Logs {
			for _, ev := range l.Events {
				for _, a := range ev.Attributes {
					out = append(out, models.LogEntry{Msg: l.MsgIndex, Type: ev.Type, Key: a.Key, Value: a.Value})
				}
			}
		}
		return out
	}
	for _, ev := range r.Events {
		msg := -1
		for _, a := range ev.Attributes {
			if a.Key == "msg_index" {
				if n, err := strconv.Atoi(a.Value); err == nil {
					msg = n
				}
			}
		}
		if msg < 0 {
			continue
		}
		for _, a := range ev.Attributes {
			if a.Key == "msg_index" {
				continue
			}
			out = append(out, models.LogEntry{Msg: msg, Type: ev.Type, Key: a.Key, Value: a.Value})
		}
	}
	return out
}

// contractMessage strips the node's wrapping so only the contract's own
// message remains.
func contractMessage(msg string) string {
	const marker = "encrypted: "
	if i := strings.Index(msg, marker); i >= 0 {
		msg = msg[i+len(marker):]
	}
	if i := strings.LastIndex(msg, ": unknown request"); i >= 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}

// decodeAnswer accepts the contract answer either as JSON or as base64 encoded JSON.
func decodeAnswer(b []byte) (json.RawMessage, error) {
	if json.Valid(b) {
		return json.RawMessage(b), nil
	}
	inner, err := base64.StdEncoding.DecodeString(string(b))
	if err == nil && json.Valid(inner) {
		return json.RawMessage(inner), nil
	}
	return nil, errors.Wrap(ErrMalformedMessage, "query answer is not JSON")
}

func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}
