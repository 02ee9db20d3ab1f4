package matchingengine

import (
	"encoding/binary"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"go.uber.org/zap"

	"github.com/nspcc-dev/colview/pkg/identity"
	"github.com/nspcc-dev/colview/pkg/store"
	"github.com/nspcc-dev/colview/pkg/views"
	"github.com/nspcc-dev/colview/pkg/views/queue"
	"github.com/nspcc-dev/colview/pkg/views/register"
	"github.com/nspcc-dev/colview/pkg/views/typed"
)

// Top-level field tags, partitioning the engine's root context the same
// way the collection engine partitions each entry's own key-space.
const (
	tagNextOrderNumber byte = iota
	tagOrders
	tagAccountInfo
	tagBids
	tagAsks
)

type uint64Codec struct{}

func (uint64Codec) Encode(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func (uint64Codec) Decode(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("colview/matchingengine: malformed counter (%d bytes)", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

type accountInfoCodec struct{}

func (accountInfoCodec) Encode(bs *bitset.BitSet) []byte {
	b, err := bs.MarshalBinary()
	if err != nil {
		// bitset's binary encoding never fails for an in-memory set.
		panic(err)
	}
	return b
}

func (accountInfoCodec) Decode(b []byte) (*bitset.BitSet, error) {
	bs := &bitset.BitSet{}
	if err := bs.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("colview/matchingengine: decode account_info: %w", err)
	}
	return bs, nil
}

func loadKeyBookLeaf(ctx *store.Context) (*register.View[KeyBook], error) {
	return register.Load[KeyBook](ctx, keyBookCodec{})
}

func loadAccountInfoLeaf(ctx *store.Context) (*register.View[*bitset.BitSet], error) {
	return register.Load[*bitset.BitSet](ctx, accountInfoCodec{})
}

func loadLevel(ctx *store.Context) (*queue.View[OrderEntry], error) {
	return queue.Load[OrderEntry](ctx, orderEntryCodec{})
}

func newOrderSet() *bitset.BitSet {
	return bitset.New(0)
}

// Engine is the order-book collaborator: two sides of a price ladder, each
// a custom-ordered typed collection of per-level order queues, plus the
// symbolic order and per-owner indices Cancel/Modify need.
type Engine struct {
	ctx *store.Context

	nextOrderNumber *register.View[uint64]
	orders          *typed.Collection[OrderID, *register.View[KeyBook]]
	accountInfo     *typed.Collection[identity.Owner, *register.View[*bitset.BitSet]]
	bids            *typed.CustomOrderedCollection[PriceBid, *queue.View[OrderEntry]]
	asks            *typed.CustomOrderedCollection[PriceAsk, *queue.View[OrderEntry]]

	log *zap.Logger
}

var _ views.Hashable = (*Engine)(nil)

// SetLogger attaches log for this engine's per-operation diagnostics; an
// engine with no logger attached stays silent.
func (e *Engine) SetLogger(log *zap.Logger) {
	e.log = log
}

func (e *Engine) logger() *zap.Logger {
	if e.log == nil {
		return zap.NewNop()
	}
	return e.log
}

// Load constructs an Engine rooted at ctx, reading only each sub-view's
// own lazily-loaded markers.
func Load(ctx *store.Context) (*Engine, error) {
	nextOrderNumber, err := register.Load[uint64](ctx.DeriveChild([]byte{tagNextOrderNumber}), uint64Codec{})
	if err != nil {
		return nil, fmt.Errorf("colview/matchingengine: load next_order_number: %w", err)
	}
	orders, err := typed.LoadCollection[OrderID](ctx.DeriveChild([]byte{tagOrders}), orderIDSerializer{}, loadKeyBookLeaf)
	if err != nil {
		return nil, fmt.Errorf("colview/matchingengine: load orders: %w", err)
	}
	accountInfo, err := typed.LoadCollection[identity.Owner](ctx.DeriveChild([]byte{tagAccountInfo}), ownerSerializer{}, loadAccountInfoLeaf)
	if err != nil {
		return nil, fmt.Errorf("colview/matchingengine: load account_info: %w", err)
	}
	bids, err := typed.LoadCustomOrderedCollection[PriceBid](ctx.DeriveChild([]byte{tagBids}), priceBidSerializer{}, loadLevel)
	if err != nil {
		return nil, fmt.Errorf("colview/matchingengine: load bids: %w", err)
	}
	asks, err := typed.LoadCustomOrderedCollection[PriceAsk](ctx.DeriveChild([]byte{tagAsks}), priceAskSerializer{}, loadLevel)
	if err != nil {
		return nil, fmt.Errorf("colview/matchingengine: load asks: %w", err)
	}
	return &Engine{
		ctx:             ctx,
		nextOrderNumber: nextOrderNumber,
		orders:          orders,
		accountInfo:     accountInfo,
		bids:            bids,
		asks:            asks,
	}, nil
}

// Context implements views.View.
func (e *Engine) Context() *store.Context { return e.ctx }

// Rollback implements views.View.
func (e *Engine) Rollback() {
	e.nextOrderNumber.Rollback()
	e.orders.Rollback()
	e.accountInfo.Rollback()
	e.bids.Rollback()
	e.asks.Rollback()
}

// Clear implements views.View.
func (e *Engine) Clear() {
	e.nextOrderNumber.Clear()
	e.orders.Clear()
	e.accountInfo.Clear()
	e.bids.Clear()
	e.asks.Clear()
}

// Flush implements views.View.
func (e *Engine) Flush(batch *store.Batch) error {
	if err := e.nextOrderNumber.Flush(batch); err != nil {
		return err
	}
	if err := e.orders.Flush(batch); err != nil {
		return err
	}
	if err := e.accountInfo.Flush(batch); err != nil {
		return err
	}
	if err := e.bids.Flush(batch); err != nil {
		return err
	}
	if err := e.asks.Flush(batch); err != nil {
		return err
	}
	return nil
}

// Hash absorbs each top-level field's hash in a fixed order, giving the
// whole order book a single deterministic digest.
func (e *Engine) Hash() ([]byte, error) {
	return e.hash(false)
}

// HashMut behaves like Hash; the engine has no top-level cache to
// populate without locking, so both simply recompute from the fields'
// own (independently cached) hashes.
func (e *Engine) HashMut() ([]byte, error) {
	return e.hash(true)
}

func (e *Engine) hash(mut bool) ([]byte, error) {
	hashField := func(h interface {
		Hash() ([]byte, error)
		HashMut() ([]byte, error)
	}) ([]byte, error) {
		if mut {
			return h.HashMut()
		}
		return h.Hash()
	}

	hNext, err := hashField(e.nextOrderNumber)
	if err != nil {
		return nil, err
	}
	hOrders, err := hashField(e.orders)
	if err != nil {
		return nil, err
	}
	hAccounts, err := hashField(e.accountInfo)
	if err != nil {
		return nil, err
	}
	hBids, err := hashField(e.bids)
	if err != nil {
		return nil, err
	}
	hAsks, err := hashField(e.asks)
	if err != nil {
		return nil, err
	}

	hasher := views.NewHasher()
	hasher.WriteBytes(hNext)
	hasher.WriteBytes(hOrders)
	hasher.WriteBytes(hAccounts)
	hasher.WriteBytes(hBids)
	hasher.WriteBytes(hAsks)
	return hasher.Sum(), nil
}

// LevelCounts returns the number of live price levels on each side of the
// book, for read-only inspection.
func (e *Engine) LevelCounts() (bidLevels, askLevels int, err error) {
	bids, err := e.bids.Indices()
	if err != nil {
		return 0, 0, err
	}
	asks, err := e.asks.Indices()
	if err != nil {
		return 0, 0, err
	}
	return len(bids), len(asks), nil
}

func (e *Engine) nextOrderID() OrderID {
	value, _ := e.nextOrderNumber.Get()
	e.nextOrderNumber.Set(value + 1)
	return OrderID(value)
}
