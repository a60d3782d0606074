package chain

import (
	"math"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	typeURLExecute     = "/secret.compute.v1beta1.MsgExecuteContract"
	typeURLInstantiate = "/secret.compute.v1beta1.MsgInstantiateContract"
	typeURLPubKey      = "/cosmos.crypto.secp256k1.PubKey"

	signModeDirect = 1
)

// Coin is an amount of one denomination.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// FeeFor returns the fee paid for gasLimit at gasPrice, rounded up.
func FeeFor(gasLimit uint64, gasPrice float64, denom string) Coin {
	amount := uint64(math.Ceil(float64(gasLimit) * gasPrice))
	return Coin{Denom: denom, Amount: strconv.FormatUint(amount, 10)}
}

// Proto3 omits scalar fields that hold their zero value. Embedded messages
// are always written.

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

func encodeCoin(c Coin) []byte {
	var b []byte
	b = appendString(b, 1, c.Denom)
	return appendString(b, 2, c.Amount)
}

// encodeExecuteMsg encodes secret.compute.v1beta1.MsgExecuteContract.
func encodeExecuteMsg(sender, contract, msg []byte, funds []Coin) []byte {
	var b []byte
	b = appendBytes(b, 1, sender)
	b = appendBytes(b, 2, contract)
	b = appendBytes(b, 3, msg)
	for _, c := range funds {
		b = appendMessage(b, 5, encodeCoin(c))
	}
	return b
}

// encodeInstantiateMsg encodes secret.compute.v1beta1.MsgInstantiateContract.
func encodeInstantiateMsg(sender []byte, codeID uint64, label string, initMsg []byte, funds []Coin) []byte {
	var b []byte
	b = appendBytes(b, 1, sender)
	b = appendVarint(b, 3, codeID)
	b = appendString(b, 4, label)
	b = appendBytes(b, 5, initMsg)
	for _, c := range funds {
		b = appendMessage(b, 6, encodeCoin(c))
	}
	return b
}

func encodeAny(typeURL string, value []byte) []byte {
	var b []byte
	b = appendString(b, 1, typeURL)
	return appendBytes(b, 2, value)
}

func encodeTxBody(msgs [][]byte, memo string) []byte {
	var b []byte
	for _, m := range msgs {
		b = appendMessage(b, 1, m)
	}
	return appendString(b, 2, memo)
}

func encodeAuthInfo(pubKey []byte, sequence uint64, fee Coin, gasLimit uint64) []byte {
	var pk []byte
	pk = appendBytes(pk, 1, pubKey)

	var single []byte
	single = appendVarint(single, 1, signModeDirect)
	var modeInfo []byte
	modeInfo = appendMessage(modeInfo, 1, single)

	var signer []byte
	signer = appendMessage(signer, 1, encodeAny(typeURLPubKey, pk))
	signer = appendMessage(signer, 2, modeInfo)
	signer = appendVarint(signer, 3, sequence)

	var feeMsg []byte
	feeMsg = appendMessage(feeMsg, 1, encodeCoin(fee))
	feeMsg = appendVarint(feeMsg, 2, gasLimit)

	var b []byte
	b = appendMessage(b, 1, signer)
	return appendMessage(b, 2, feeMsg)
}

func encodeSignDoc(body, authInfo []byte, chainID string, accountNumber uint64) []byte {
	var b []byte
	b = appendBytes(b, 1, body)
	b = appendBytes(b, 2, authInfo)
	b = appendString(b, 3, chainID)
	return appendVarint(b, 4, accountNumber)
}

func encodeTxRaw(body, authInfo, signature []byte) []byte {
	var b []byte
	b = appendBytes(b, 1, body)
	b = appendBytes(b, 2, authInfo)
	return appendBytes(b, 3, signature)
}
