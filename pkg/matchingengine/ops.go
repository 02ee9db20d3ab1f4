package matchingengine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nspcc-dev/colview/pkg/identity"
	"github.com/nspcc-dev/colview/pkg/views/queue"
)

// cancelSpec distinguishes a full cancellation from a partial one; the
// Rust original uses an enum (ModifyAmount::All / ::Partial) which Go
// generics cannot express as cheaply, so this is the closest idiomatic
// stand-in. An order's size can only ever shrink, never grow.
type cancelSpec struct {
	all     bool
	partial Amount
}

func cancelAll() cancelSpec             { return cancelSpec{all: true} }
func cancelPartial(a Amount) cancelSpec { return cancelSpec{partial: a} }

type removalEntry struct {
	Owner   identity.Owner
	OrderID OrderID
}

// ExecuteOrder is the single entry point for all three order kinds. ledger
// settles the collateral Receive and every outgoing Send; auth verifies
// that whoever is running this call is entitled to act as order.Owner().
func (e *Engine) ExecuteOrder(auth identity.Authenticator, ledger TokenLedger, order Order) ([]Transfer, error) {
	owner := order.Owner()
	correlationID := uuid.New().String()
	kind := "cancel"
	switch {
	case order.Insert != nil:
		kind = "insert"
	case order.Modify != nil:
		kind = "modify"
	}
	log := e.logger().With(zap.String("correlation_id", correlationID), zap.String("operation", kind), zap.String("owner", owner.String()))

	if err := auth.Authenticate(owner); err != nil {
		log.Warn("order rejected: authentication failed", zap.Error(err))
		return nil, err
	}
	transfers, err := e.executeOrderLocked(ledger, order)
	if err != nil {
		log.Warn("order failed", zap.Error(err))
		return nil, err
	}
	log.Debug("order executed", zap.Int("transfers", len(transfers)))
	return transfers, nil
}

func (e *Engine) executeOrderLocked(ledger TokenLedger, order Order) ([]Transfer, error) {
	switch {
	case order.Insert != nil:
		ins := order.Insert
		collateral, tokenIdx, err := GetAmountIdx(ins.Nature, ins.Price, ins.Amount)
		if err != nil {
			return nil, err
		}
		if err := ledger.Receive(ins.Owner, collateral, tokenIdx); err != nil {
			return nil, err
		}
		transfers, err := e.insertAndUncrossMarket(ins.Owner, ins.Amount, ins.Nature, ins.Price)
		if err != nil {
			return nil, err
		}
		for _, t := range transfers {
			if err := ledger.Send(t); err != nil {
				return nil, err
			}
		}
		return transfers, nil
	case order.Cancel != nil:
		transfer, err := e.modifyOrderCheck(order.Cancel.OrderID, cancelAll(), order.Cancel.Owner)
		if err != nil {
			return nil, err
		}
		if err := ledger.Send(transfer); err != nil {
			return nil, err
		}
		return []Transfer{transfer}, nil
	case order.Modify != nil:
		transfer, err := e.modifyOrderCheck(order.Modify.OrderID, cancelPartial(order.Modify.CancelAmount), order.Modify.Owner)
		if err != nil {
			return nil, err
		}
		if err := ledger.Send(transfer); err != nil {
			return nil, err
		}
		return []Transfer{transfer}, nil
	default:
		return nil, fmt.Errorf("colview/matchingengine: order carries no operation")
	}
}

// checkOrderID verifies that order_id exists and was issued by owner.
func (e *Engine) checkOrderID(orderID OrderID, owner identity.Owner) error {
	view, ok, err := e.orders.TryLoadEntry(orderID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOrderNotPresent
	}
	keyBook, has := view.Get()
	if !has {
		return ErrOrderNotPresent
	}
	if keyBook.Owner != owner {
		return ErrWrongOwnerOfOrder
	}
	return nil
}

// modifyOrderCheck checks ownership, applies the modification, and
// returns the transfer owed back to the order's owner.
func (e *Engine) modifyOrderCheck(orderID OrderID, spec cancelSpec, owner identity.Owner) (Transfer, error) {
	if err := e.checkOrderID(orderID, owner); err != nil {
		return Transfer{}, err
	}
	return e.modifyOrder(orderID, spec)
}

func (e *Engine) modifyOrder(orderID OrderID, spec cancelSpec) (Transfer, error) {
	bookView, ok, err := e.orders.TryLoadEntry(orderID)
	if err != nil {
		return Transfer{}, err
	}
	if !ok {
		return Transfer{}, ErrOrderNotPresent
	}
	keyBook, has := bookView.Get()
	if !has {
		return Transfer{}, ErrOrderNotPresent
	}

	switch keyBook.Nature {
	case Bid:
		view, err := e.bids.LoadEntryMut(keyBook.Price.ToBid())
		if err != nil {
			return Transfer{}, err
		}
		cancelAmount, removeOrder, err := modifyOrderLevel(view, orderID, spec)
		if err != nil {
			return Transfer{}, err
		}
		if view.Count() == 0 {
			e.bids.RemoveEntry(keyBook.Price.ToBid())
		}
		if removeOrder {
			if err := e.removeOrderID(removalEntry{Owner: keyBook.Owner, OrderID: orderID}); err != nil {
				return Transfer{}, err
			}
		}
		cancelAmount0, err := ProductPriceAmount(keyBook.Price, cancelAmount)
		if err != nil {
			return Transfer{}, err
		}
		return Transfer{Owner: keyBook.Owner, Amount: cancelAmount0, TokenIdx: 0}, nil
	case Ask:
		view, err := e.asks.LoadEntryMut(keyBook.Price.ToAsk())
		if err != nil {
			return Transfer{}, err
		}
		cancelAmount, removeOrder, err := modifyOrderLevel(view, orderID, spec)
		if err != nil {
			return Transfer{}, err
		}
		if view.Count() == 0 {
			e.asks.RemoveEntry(keyBook.Price.ToAsk())
		}
		if removeOrder {
			if err := e.removeOrderID(removalEntry{Owner: keyBook.Owner, OrderID: orderID}); err != nil {
				return Transfer{}, err
			}
		}
		return Transfer{Owner: keyBook.Owner, Amount: cancelAmount, TokenIdx: 1}, nil
	default:
		return Transfer{}, fmt.Errorf("colview/matchingengine: unknown order nature %v", keyBook.Nature)
	}
}

// modifyOrderLevel finds orderID within view's queue and applies spec to
// it, returning how much was cancelled and whether the order's size
// reached zero (and so must be removed from the symbolic indices by the
// caller).
func modifyOrderLevel(view *queue.View[OrderEntry], orderID OrderID, spec cancelSpec) (Amount, bool, error) {
	found := false
	var cancelled Amount
	var newAmount Amount
	err := view.IterMut(func(_ int, rec OrderEntry) (OrderEntry, error) {
		if found || rec.OrderID != orderID {
			return rec, nil
		}
		found = true
		if spec.all {
			newAmount = 0
		} else {
			if spec.partial > rec.Amount {
				return rec, ErrTooLargeModifyOrder
			}
			reduced, err := rec.Amount.Sub(spec.partial)
			if err != nil {
				return rec, err
			}
			newAmount = reduced
		}
		reduced, err := rec.Amount.Sub(newAmount)
		if err != nil {
			return rec, err
		}
		cancelled = reduced
		rec.Amount = newAmount
		return rec, nil
	})
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, ErrOrderNotPresent
	}
	if err := removeZeroOrdersFromLevel(view); err != nil {
		return 0, false, err
	}
	return cancelled, newAmount == 0, nil
}

var errStopIteration = errors.New("colview/matchingengine: internal iteration stop")

// removeZeroOrdersFromLevel drops every zero-amount order at the front of
// view's queue. An order can reach amount zero either by being filled or
// by a prior cancellation; a zero-amount order that is not at the front
// is left in place until it rises to the front by attrition of the
// orders ahead of it.
func removeZeroOrdersFromLevel(view *queue.View[OrderEntry]) error {
	n := 0
	err := view.ForEach(func(_ int, rec OrderEntry) error {
		if rec.Amount != 0 {
			return errStopIteration
		}
		n++
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return err
	}
	for i := 0; i < n; i++ {
		view.DeleteFront()
	}
	return nil
}

// getTransfers computes the settlement for filling fill units against
// order_level, a resting order at priceLevel, when the
// incoming order was placed at priceInsert. Price improvement (money left
// on the table by crossing at a better price than strictly necessary) is
// always credited to the resting, liquidity-providing order.
func getTransfers(nature OrderNature, fill Amount, owner identity.Owner, orderLevel OrderEntry, priceLevel, priceInsert Price) ([]Transfer, error) {
	switch nature {
	case Bid:
		if priceInsert.Value < priceLevel.Value {
			return nil, ErrInvalidCrossingPrice
		}
		fill0, err := ProductPriceAmount(priceInsert, fill)
		if err != nil {
			return nil, err
		}
		return []Transfer{
			{Owner: owner, Amount: fill, TokenIdx: 1},
			{Owner: orderLevel.Owner, Amount: fill0, TokenIdx: 0},
		}, nil
	case Ask:
		if priceInsert.Value > priceLevel.Value {
			return nil, ErrInvalidCrossingPrice
		}
		fill0, err := ProductPriceAmount(priceInsert, fill)
		if err != nil {
			return nil, err
		}
		transfers := []Transfer{
			{Owner: orderLevel.Owner, Amount: fill, TokenIdx: 1},
			{Owner: owner, Amount: fill0, TokenIdx: 0},
		}
		if priceLevel.Value != priceInsert.Value {
			diff := Price{Value: priceLevel.Value - priceInsert.Value}
			bonus, err := ProductPriceAmount(diff, fill)
			if err != nil {
				return nil, err
			}
			transfers = append(transfers, Transfer{Owner: orderLevel.Owner, Amount: bonus, TokenIdx: 0})
		}
		return transfers, nil
	default:
		return nil, fmt.Errorf("colview/matchingengine: unknown order nature %v", nature)
	}
}

// levelClearing fills as much of *amount as view's resting orders allow,
// oldest order first, appending every resulting transfer to *transfers
// and returning the (owner, order id) pairs whose order reached zero (and
// so must be dropped from the symbolic indices by the caller, once the
// price-level entry itself has been consulted for view.Count() == 0).
func levelClearing(view *queue.View[OrderEntry], owner identity.Owner, amount *Amount, transfers *[]Transfer, nature OrderNature, priceLevel, priceInsert Price) ([]removalEntry, error) {
	var removed []removalEntry
	err := view.IterMut(func(_ int, order OrderEntry) (OrderEntry, error) {
		fill := Min(order.Amount, *amount)
		na, err := (*amount).Sub(fill)
		if err != nil {
			return order, err
		}
		*amount = na
		oa, err := order.Amount.Sub(fill)
		if err != nil {
			return order, err
		}
		order.Amount = oa
		if fill > 0 {
			ts, err := getTransfers(nature, fill, owner, order, priceLevel, priceInsert)
			if err != nil {
				return order, err
			}
			*transfers = append(*transfers, ts...)
		}
		if order.Amount == 0 {
			removed = append(removed, removalEntry{Owner: order.Owner, OrderID: order.OrderID})
		}
		return order, nil
	})
	if err != nil {
		return nil, err
	}
	if err := removeZeroOrdersFromLevel(view); err != nil {
		return nil, err
	}
	return removed, nil
}

// insertOrder records a freshly placed (possibly partially filled) order
// in both the symbolic order index and its owner's order set.
func (e *Engine) insertOrder(owner identity.Owner, nature OrderNature, orderID OrderID, price Price) error {
	accountView, err := e.accountInfo.LoadEntryOrInsert(owner)
	if err != nil {
		return err
	}
	bs, ok := accountView.Get()
	if !ok || bs == nil {
		bs = newOrderSet()
	}
	bs.Set(uint(orderID))
	accountView.Set(bs)

	bookView, err := e.orders.LoadEntryOrInsert(orderID)
	if err != nil {
		return err
	}
	bookView.Set(KeyBook{Price: price, Nature: nature, Owner: owner})
	return nil
}

func (e *Engine) removeOrderID(entry removalEntry) error {
	accountView, ok, err := e.accountInfo.TryLoadEntry(entry.Owner)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("colview/matchingengine: account_info missing for owner with a live order")
	}
	bs, has := accountView.Get()
	if !has || bs == nil {
		return fmt.Errorf("colview/matchingengine: account_info missing for owner with a live order")
	}
	bs.Clear(uint(entry.OrderID))
	accountView.Set(bs)
	e.orders.RemoveEntry(entry.OrderID)
	return nil
}

func (e *Engine) removeOrderIDs(entries []removalEntry) error {
	for _, entry := range entries {
		if err := e.removeOrderID(entry); err != nil {
			return err
		}
	}
	return nil
}

// insertAndUncrossMarket is the central matching algorithm: the incoming
// order walks the opposing side of the book from best price outward, filling
// against every resting order it crosses, and whatever remains becomes a
// new resting order on its own side.
func (e *Engine) insertAndUncrossMarket(owner identity.Owner, amount Amount, nature OrderNature, price Price) ([]Transfer, error) {
	orderID := e.nextOrderID()
	finalAmount := amount
	var transfers []Transfer

	switch nature {
	case Bid:
		var matchingAsks []PriceAsk
		err := e.asks.ForEachIndexWhile(func(priceAsk PriceAsk) (bool, error) {
			matches := priceAsk.ToPrice().Value <= price.Value
			if matches {
				matchingAsks = append(matchingAsks, priceAsk)
			}
			return matches, nil
		})
		if err != nil {
			return nil, err
		}
		for _, priceAsk := range matchingAsks {
			view, err := e.asks.LoadEntryMut(priceAsk)
			if err != nil {
				return nil, err
			}
			removed, err := levelClearing(view, owner, &finalAmount, &transfers, nature, priceAsk.ToPrice(), price)
			if err != nil {
				return nil, err
			}
			if view.Count() == 0 {
				e.asks.RemoveEntry(priceAsk)
			}
			if err := e.removeOrderIDs(removed); err != nil {
				return nil, err
			}
			if finalAmount == 0 {
				break
			}
		}
		if finalAmount != 0 {
			view, err := e.bids.LoadEntryMut(price.ToBid())
			if err != nil {
				return nil, err
			}
			view.PushBack(OrderEntry{Amount: finalAmount, Owner: owner, OrderID: orderID})
			if err := e.insertOrder(owner, Bid, orderID, price); err != nil {
				return nil, err
			}
		}
	case Ask:
		var matchingBids []PriceBid
		err := e.bids.ForEachIndexWhile(func(priceBid PriceBid) (bool, error) {
			matches := priceBid.ToPrice().Value >= price.Value
			if matches {
				matchingBids = append(matchingBids, priceBid)
			}
			return matches, nil
		})
		if err != nil {
			return nil, err
		}
		for _, priceBid := range matchingBids {
			view, err := e.bids.LoadEntryMut(priceBid)
			if err != nil {
				return nil, err
			}
			removed, err := levelClearing(view, owner, &finalAmount, &transfers, nature, priceBid.ToPrice(), price)
			if err != nil {
				return nil, err
			}
			if view.Count() == 0 {
				e.bids.RemoveEntry(priceBid)
			}
			if err := e.removeOrderIDs(removed); err != nil {
				return nil, err
			}
			if finalAmount == 0 {
				break
			}
		}
		if finalAmount != 0 {
			view, err := e.asks.LoadEntryMut(price.ToAsk())
			if err != nil {
				return nil, err
			}
			view.PushBack(OrderEntry{Amount: finalAmount, Owner: owner, OrderID: orderID})
			if err := e.insertOrder(owner, Ask, orderID, price); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("colview/matchingengine: unknown order nature %v", nature)
	}

	return transfers, nil
}
