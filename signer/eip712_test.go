package signer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "0x4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1"

func TestSigner_SignIsDeterministic(t *testing.T) {
	s, err := New(testKeyHex, true)
	require.NoError(t, err)

	action := UpdateLeverageAction{Asset: 0, IsCross: true, Leverage: 10}

	sig1, err := s.Sign(action, 1700000000000)
	require.NoError(t, err)
	sig2, err := s.Sign(action, 1700000000000)
	require.NoError(t, err)

	assert.Equal(t, sig1, sig2, "same action and nonce must produce the same signature")
	assert.NotEmpty(t, sig1.R)
	assert.NotEmpty(t, sig1.S)
	assert.True(t, sig1.V == 27 || sig1.V == 28)
}

func TestSigner_DifferentNonceChangesSignature(t *testing.T) {
	s, err := New(testKeyHex, true)
	require.NoError(t, err)

	action := CancelAction{Cancels: []CancelRequest{{Asset: 1, OID: "42"}}}

	sig1, err := s.Sign(action, 1)
	require.NoError(t, err)
	sig2, err := s.Sign(action, 2)
	require.NoError(t, err)

	assert.NotEqual(t, sig1, sig2)
}

func TestActionHash_OrderOfFieldsIsFixed(t *testing.T) {
	a := OrderAction{
		Orders: []OrderRequest{
			{Asset: 0, IsBuy: true, Price: "100.5", Size: "1.0", ReduceOnly: false,
				OrderType: OrderTypeSpec{Limit: &LimitSpec{TimeInForce: "Gtc"}}},
		},
		Grouping: "na",
	}

	h1, err := ActionHash(a, 1)
	require.NoError(t, err)
	h2, err := ActionHash(a, 1)
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "hashing the same action twice must be stable")
	assert.Len(t, h1, 32)
}
