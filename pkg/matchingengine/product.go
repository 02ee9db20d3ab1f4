package matchingengine

import (
	"errors"

	"github.com/holiman/uint256"
)

// ErrPriceAmountOverflow is returned by ProductPriceAmount when price*fill
// cannot be represented as an Amount.
var ErrPriceAmountOverflow = errors.New("colview/matchingengine: price * amount overflow")

// ProductPriceAmount computes price * amount (the token-0 cost of filling
// amount units of token 1 at price), detecting overflow instead of
// silently wrapping.
func ProductPriceAmount(price Price, amount Amount) (Amount, error) {
	p := uint256.NewInt(price.Value)
	a := uint256.NewInt(uint64(amount))
	product := new(uint256.Int)
	_, overflow := product.MulOverflow(p, a)
	if overflow || !product.IsUint64() {
		return 0, ErrPriceAmountOverflow
	}
	return Amount(product.Uint64()), nil
}
