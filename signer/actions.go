// Package signer implements the EIP-712 / secp256k1 action signing
// scheme described in spec.md §4.5. No EIP-712 library was found
// anywhere in the retrieval pack, so the domain/struct hashing is
// built by hand directly from the algorithm; hashing and ECDSA signing
// reuse github.com/ethereum/go-ethereum/crypto (grounded on
// ChoSanghyuk-blackholedex, the pack's only repo that signs with an
// ecdsa.PrivateKey over go-ethereum primitives). Canonical action
// encoding uses github.com/vmihailenco/msgpack/v5, the msgpack library
// the pack's manifests confirm for this style of exchange action
// signing.
package signer

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Action is anything that can be canonically MessagePack-encoded with
// a fixed key order per spec.md §4.5 step 1. EncodeOrdered must call
// enc.EncodeMapLen(n) followed by exactly n alternating key/value
// Encode calls, in declared field order, with "type" always first.
type Action interface {
	EncodeOrdered(enc *msgpack.Encoder) error
}

// OrderRequest is one order line within an Order action.
type OrderRequest struct {
	Asset      int     `msgpack:"a"`
	IsBuy      bool    `msgpack:"b"`
	Price      string  `msgpack:"p"`
	Size       string  `msgpack:"s"`
	ReduceOnly bool    `msgpack:"r"`
	OrderType  OrderTypeSpec `msgpack:"t"`
}

// OrderTypeSpec distinguishes limit vs trigger (stop-loss) orders.
type OrderTypeSpec struct {
	Limit   *LimitSpec   `msgpack:"limit,omitempty"`
	Trigger *TriggerSpec `msgpack:"trigger,omitempty"`
}

type LimitSpec struct {
	TimeInForce string `msgpack:"tif"`
}

type TriggerSpec struct {
	TriggerPx string `msgpack:"triggerPx"`
	IsMarket  bool   `msgpack:"isMarket"`
	TpSl      string `msgpack:"tpsl"` // "sl" for stop-loss
}

// OrderAction places one or more orders. Key order: ("type","orders","grouping").
type OrderAction struct {
	Orders   []OrderRequest
	Grouping string
}

func (a OrderAction) EncodeOrdered(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(3); err != nil {
		return err
	}
	if err := encodeKV(enc, "type", "order"); err != nil {
		return err
	}
	if err := enc.EncodeString("orders"); err != nil {
		return err
	}
	if err := enc.Encode(a.Orders); err != nil {
		return err
	}
	return encodeKV(enc, "grouping", a.Grouping)
}

// CancelRequest names one order to cancel.
type CancelRequest struct {
	Asset int    `msgpack:"a"`
	OID   string `msgpack:"o"`
}

// CancelAction cancels one or more orders. Key order: ("type","cancels").
type CancelAction struct {
	Cancels []CancelRequest
}

func (a CancelAction) EncodeOrdered(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := encodeKV(enc, "type", "cancel"); err != nil {
		return err
	}
	if err := enc.EncodeString("cancels"); err != nil {
		return err
	}
	return enc.Encode(a.Cancels)
}

// UpdateLeverageAction sets leverage for one asset. Key order:
// ("type","asset","isCross","leverage").
type UpdateLeverageAction struct {
	Asset    int
	IsCross  bool
	Leverage int
}

func (a UpdateLeverageAction) EncodeOrdered(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(4); err != nil {
		return err
	}
	if err := encodeKV(enc, "type", "updateLeverage"); err != nil {
		return err
	}
	if err := encodeKV(enc, "asset", a.Asset); err != nil {
		return err
	}
	if err := encodeKV(enc, "isCross", a.IsCross); err != nil {
		return err
	}
	return encodeKV(enc, "leverage", a.Leverage)
}

func encodeKV(enc *msgpack.Encoder, key string, value any) error {
	if err := enc.EncodeString(key); err != nil {
		return err
	}
	return enc.Encode(value)
}

// EncodeCanonical serializes an action to the canonical MessagePack
// byte buffer consumed by the action-hash step.
func EncodeCanonical(a Action) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := a.EncodeOrdered(enc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
