package models

import "fmt"

// WalletStatus is the connection state of the wallet session.
type WalletStatus int

const (
	WalletConnecting WalletStatus = iota
	WalletConnected
	WalletError
)

func (s WalletStatus) String() string {
	switch s {
	case WalletConnecting:
		return "connecting"
	case WalletConnected:
		return "connected"
	case WalletError:
		return "error"
	default:
		return fmt.Sprintf("WalletStatus(%d)", int(s))
	}
}

func (s WalletStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *WalletStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "connecting":
		*s = WalletConnecting
	case "connected":
		*s = WalletConnected
	case "error":
		*s = WalletError
	default:
		return fmt.Errorf("unknown wallet status %q", b)
	}
	return nil
}

// WalletSession is the observable part of a wallet connection. The chain client
// handle bound to it is owned by the wallet package.
type WalletSession struct {
	Status  WalletStatus `json:"status"`
	Address string       `json:"address,omitempty"`
	Error   string       `json:"error,omitempty"`
}

func (s WalletSession) Connected() bool {
	return s.Status == WalletConnected && s.Address != ""
}
