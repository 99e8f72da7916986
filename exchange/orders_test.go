package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderResponse_OrderID_PrefersResting(t *testing.T) {
	var r orderResponse
	r.Response.Data.Statuses = []struct {
		Resting *struct {
			OID int64 `json:"oid"`
		} `json:"resting"`
		Filled *struct {
			OID int64 `json:"oid"`
		} `json:"filled"`
	}{{}}
	r.Response.Data.Statuses[0].Resting = &struct {
		OID int64 `json:"oid"`
	}{OID: 42}

	id, err := r.orderID()
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestOrderResponse_OrderID_EmptyIsError(t *testing.T) {
	var r orderResponse
	_, err := r.orderID()
	assert.Error(t, err)
}

func TestFormatPriceAndSize(t *testing.T) {
	assert.Equal(t, "100.5", formatPrice(100.5))
	assert.Equal(t, "1.25", formatSize(1.25))
}
