// Package matchingengine is an example collaborator built on the byte
// collection engine: a two-token order book built on the collection
// engine, typed collection wrappers, ordered queues, and register leaves
// from the sibling view packages. An order can be a Bid (buying token 1,
// paying token 0) or an Ask (selling token 1, paid in token 0); orders are
// identified by a monotonically increasing OrderID and can be Modified
// (partial cancellation only) or Cancelled.
package matchingengine

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nspcc-dev/colview/pkg/identity"
)

// Amount is a token quantity. Arithmetic is checked: Sub returns an error
// on underflow rather than wrapping.
type Amount uint64

// Sub returns a - b, or an error if b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return 0, fmt.Errorf("%w: %d - %d", ErrAmountUnderflow, a, b)
	}
	return a - b, nil
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// ErrAmountUnderflow is returned by Amount.Sub on underflow.
var ErrAmountUnderflow = errors.New("colview/matchingengine: amount underflow")

// OrderNature distinguishes a buy order from a sell order.
type OrderNature int

const (
	// Bid buys token 1, paying in token 0.
	Bid OrderNature = iota
	// Ask sells token 1, to be paid in token 0.
	Ask
)

func (n OrderNature) String() string {
	if n == Bid {
		return "Bid"
	}
	return "Ask"
}

// OrderID uniquely identifies an order, assigned on insertion in
// monotonically increasing order.
type OrderID uint64

// Price is the asking or bidding price of token 1 in units of token 0.
// Forcing an integer price means tokens are treated as indivisible;
// fractional pricing is out of scope.
type Price struct {
	Value uint64
}

// ToBid returns the bid-side key for p.
func (p Price) ToBid() PriceBid { return PriceBid{Price: p.Value} }

// ToAsk returns the ask-side key for p.
func (p Price) ToAsk() PriceAsk { return PriceAsk{Price: p.Value} }

// PriceAsk is the ask-side price index key.
type PriceAsk struct{ Price uint64 }

// ToPrice converts back to a plain Price.
func (p PriceAsk) ToPrice() Price { return Price{Value: p.Price} }

// PriceBid is the bid-side price index key.
type PriceBid struct{ Price uint64 }

// ToPrice converts back to a plain Price.
func (p PriceBid) ToPrice() Price { return Price{Value: p.Price} }

// Order is the payload of ExecuteOrder.
type Order struct {
	Insert *InsertOrder
	Cancel *CancelOrder
	Modify *ModifyOrder
}

// InsertOrder adds liquidity or crosses the book.
type InsertOrder struct {
	Owner  identity.Owner
	Amount Amount
	Nature OrderNature
	Price  Price
}

// CancelOrder removes an order in full.
type CancelOrder struct {
	Owner   identity.Owner
	OrderID OrderID
}

// ModifyOrder decreases (never increases) the size of a resting order.
type ModifyOrder struct {
	Owner        identity.Owner
	OrderID      OrderID
	CancelAmount Amount
}

// Owner returns the declared owner of whichever order variant is set.
func (o Order) Owner() identity.Owner {
	switch {
	case o.Insert != nil:
		return o.Insert.Owner
	case o.Cancel != nil:
		return o.Cancel.Owner
	case o.Modify != nil:
		return o.Modify.Owner
	default:
		return identity.Owner{}
	}
}

// OrderEntry is one resting liquidity order inside a price level's queue.
type OrderEntry struct {
	Amount  Amount
	Owner   identity.Owner
	OrderID OrderID
}

// KeyBook is the symbolic record kept per order-id: enough to locate and
// re-derive the order's queue entry without scanning every price level.
type KeyBook struct {
	Price  Price
	Nature OrderNature
	Owner  identity.Owner
}

// Transfer is one outgoing token movement produced by order execution,
// destined for matchingengine.TokenLedger.Send.
type Transfer struct {
	Owner    identity.Owner
	Amount   Amount
	TokenIdx int
}

// Errors surfaced to callers; these never corrupt engine state because
// they are detected before any mutation is committed.
var (
	ErrOrderNotPresent      = errors.New("colview/matchingengine: order not present")
	ErrWrongOwnerOfOrder    = errors.New("colview/matchingengine: wrong owner of order")
	ErrTooLargeModifyOrder  = errors.New("colview/matchingengine: modify amount exceeds order amount")
	ErrIncorrectAuth        = identity.ErrIncorrectAuthentication
	ErrInvalidCrossingPrice = errors.New("colview/matchingengine: crossing price violates bid/ask ordering")
)

func orderEntryEncode(e OrderEntry) []byte {
	owner := []byte(e.Owner.String())
	b := make([]byte, 0, 16+len(owner))
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(e.Amount))
	b = append(b, tmp[:]...)
	binary.BigEndian.PutUint64(tmp[:], uint64(e.OrderID))
	b = append(b, tmp[:]...)
	b = append(b, owner...)
	return b
}

func orderEntryDecode(b []byte) (OrderEntry, error) {
	if len(b) < 16 {
		return OrderEntry{}, fmt.Errorf("colview/matchingengine: malformed order entry (%d bytes)", len(b))
	}
	amount := Amount(binary.BigEndian.Uint64(b[:8]))
	orderID := OrderID(binary.BigEndian.Uint64(b[8:16]))
	owner, err := identity.ParseOwner(string(b[16:]))
	if err != nil {
		return OrderEntry{}, err
	}
	return OrderEntry{Amount: amount, OrderID: orderID, Owner: owner}, nil
}

type orderEntryCodec struct{}

func (orderEntryCodec) Encode(e OrderEntry) []byte          { return orderEntryEncode(e) }
func (orderEntryCodec) Decode(b []byte) (OrderEntry, error) { return orderEntryDecode(b) }

func keyBookEncode(k KeyBook) []byte {
	owner := []byte(k.Owner.String())
	b := make([]byte, 0, 9+len(owner))
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], k.Price.Value)
	b = append(b, tmp[:]...)
	if k.Nature == Bid {
		b = append(b, 0)
	} else {
		b = append(b, 1)
	}
	b = append(b, owner...)
	return b
}

func keyBookDecode(b []byte) (KeyBook, error) {
	if len(b) < 9 {
		return KeyBook{}, fmt.Errorf("colview/matchingengine: malformed key book (%d bytes)", len(b))
	}
	price := binary.BigEndian.Uint64(b[:8])
	nature := Bid
	if b[8] == 1 {
		nature = Ask
	}
	owner, err := identity.ParseOwner(string(b[9:]))
	if err != nil {
		return KeyBook{}, err
	}
	return KeyBook{Price: Price{Value: price}, Nature: nature, Owner: owner}, nil
}

type keyBookCodec struct{}

func (keyBookCodec) Encode(k KeyBook) []byte          { return keyBookEncode(k) }
func (keyBookCodec) Decode(b []byte) (KeyBook, error) { return keyBookDecode(b) }

type ownerSerializer struct{}

func (ownerSerializer) Serialize(o identity.Owner) []byte { return []byte(o.String()) }
func (ownerSerializer) Deserialize(b []byte) (identity.Owner, error) {
	return identity.ParseOwner(string(b))
}

type orderIDSerializer struct{}

func (orderIDSerializer) Serialize(id OrderID) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func (orderIDSerializer) Deserialize(b []byte) (OrderID, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("colview/matchingengine: malformed order id (%d bytes)", len(b))
	}
	return OrderID(binary.BigEndian.Uint64(b)), nil
}

// priceAskSerializer implements the custom-serialize law: ascending price
// maps to ascending bytes, via a plain big-endian fixed-width encoding of
// the price.
type priceAskSerializer struct{}

func (priceAskSerializer) Serialize(p PriceAsk) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, p.Price)
	return b
}

func (priceAskSerializer) Deserialize(b []byte) (PriceAsk, error) {
	if len(b) != 8 {
		return PriceAsk{}, fmt.Errorf("colview/matchingengine: malformed ask price key (%d bytes)", len(b))
	}
	return PriceAsk{Price: binary.BigEndian.Uint64(b)}, nil
}

// priceBidSerializer implements the custom-serialize law for bids:
// descending price maps to ascending bytes, by serializing the bitwise
// complement of the price instead of the price itself.
type priceBidSerializer struct{}

func (priceBidSerializer) Serialize(p PriceBid) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, ^p.Price)
	return b
}

func (priceBidSerializer) Deserialize(b []byte) (PriceBid, error) {
	if len(b) != 8 {
		return PriceBid{}, fmt.Errorf("colview/matchingengine: malformed bid price key (%d bytes)", len(b))
	}
	return PriceBid{Price: ^binary.BigEndian.Uint64(b)}, nil
}
