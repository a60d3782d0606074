package chain

import (
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/pkg/errors"
)

// EncodeAddress returns the bech32 form of raw address bytes.
func EncodeAddress(hrp string, raw []byte) (string, error) {
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "convert address bits")
	}
	return bech32.Encode(hrp, conv)
}

// DecodeAddress returns the human readable part and the raw bytes of a bech32 address.
func DecodeAddress(addr string) (string, []byte, error) {
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "decode address %q", addr)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, errors.Wrapf(err, "convert address %q", addr)
	}
	if len(raw) != 20 && len(raw) != 32 {
		return "", nil, errors.Errorf("address %q has invalid length %d", addr, len(raw))
	}
	return hrp, raw, nil
}

// ValidateAddress checks that addr is a bech32 address with the given prefix.
func ValidateAddress(addr, hrp string) error {
	got, _, err := DecodeAddress(addr)
	if err != nil {
		return err
	}
	if got != hrp {
		return errors.Errorf("address %q has prefix %q, want %q", addr, got, hrp)
	}
	return nil
}
