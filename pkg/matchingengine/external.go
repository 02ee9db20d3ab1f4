package matchingengine

import "github.com/nspcc-dev/colview/pkg/identity"

// TokenLedger is the external token-transfer collaborator the matching
// engine settles against: collateral is received from an order's owner
// when the order is inserted, and disbursed back out as transfers are
// produced by uncrossing the market. A real deployment implements this
// against a fungible-token application; nothing in this module moves
// tokens on its own.
type TokenLedger interface {
	// Receive pulls amount of the token at tokenIdx from owner into the
	// engine's custody, e.g. to collateralize a newly inserted order.
	Receive(owner identity.Owner, amount Amount, tokenIdx int) error
	// Send pays transfer.Amount of the token at transfer.TokenIdx out of
	// the engine's custody to transfer.Owner.
	Send(transfer Transfer) error
}

// RemoteSubmitter is the external transport collaborator for orders whose
// owning chain is not the matching engine's own: the order's collateral
// is transferred under the same owner to the engine's chain, then the
// order itself is dispatched as a message. Neither step is implemented
// here; this module only owns local order-book semantics.
type RemoteSubmitter interface {
	// SubmitRemote dispatches order to the matching engine's chain after
	// its collateral has already been moved there.
	SubmitRemote(order Order) error
}

// GetAmountIdx returns the collateral amount and token index a TokenLedger
// must Receive when order is inserted: a bid commits price*amount of
// token 0, an ask commits amount of token 1.
func GetAmountIdx(nature OrderNature, price Price, amount Amount) (Amount, int, error) {
	if nature == Ask {
		return amount, 1, nil
	}
	size0, err := ProductPriceAmount(price, amount)
	if err != nil {
		return 0, 0, err
	}
	return size0, 0, nil
}
