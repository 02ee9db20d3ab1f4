package matchingengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPriceOrderingLaw checks that for an increasing price sequence, ask
// bytes increase and bid bytes decrease, and both round-trip through
// their serializers.
func TestPriceOrderingLaw(t *testing.T) {
	var values []uint64
	val := uint64(1)
	for i := 0; i < 20; i++ {
		val *= 3
		values = append(values, val)
	}

	askSer := priceAskSerializer{}
	bidSer := priceBidSerializer{}

	for i := 1; i < len(values); i++ {
		v1, v2 := values[i-1], values[i]
		require.Less(t, v1, v2)

		ask1, ask2 := askSer.Serialize(PriceAsk{Price: v1}), askSer.Serialize(PriceAsk{Price: v2})
		bid1, bid2 := bidSer.Serialize(PriceBid{Price: v1}), bidSer.Serialize(PriceBid{Price: v2})

		require.Less(t, string(ask1), string(ask2), "ascending price must serialize to ascending ask bytes")
		require.Greater(t, string(bid1), string(bid2), "ascending price must serialize to descending bid bytes")

		ask1Back, err := askSer.Deserialize(ask1)
		require.NoError(t, err)
		require.Equal(t, v1, ask1Back.Price)

		bid1Back, err := bidSer.Deserialize(bid1)
		require.NoError(t, err)
		require.Equal(t, v1, bid1Back.Price)
	}
}

func TestProductPriceAmountOverflow(t *testing.T) {
	_, err := ProductPriceAmount(Price{Value: 1 << 40}, Amount(1<<40))
	require.ErrorIs(t, err, ErrPriceAmountOverflow)
}

func TestProductPriceAmountExact(t *testing.T) {
	got, err := ProductPriceAmount(Price{Value: 7}, Amount(6))
	require.NoError(t, err)
	require.Equal(t, Amount(42), got)
}
