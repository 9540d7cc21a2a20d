package market

import (
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/kalshi-hedger/internal/model"
)

// OrderStatus is the lifecycle state of a locally-originated order.
//
// Transitions: PendingAck -> Resting | Filled | Rejected,
// Resting -> Filled | Canceled. Terminal states never transition again.
type OrderStatus int

const (
	PendingAck OrderStatus = iota
	Resting
	Filled
	Canceled
	Rejected
)

func (s OrderStatus) String() string {
	switch s {
	case PendingAck:
		return "pending_ack"
	case Resting:
		return "resting"
	case Filled:
		return "filled"
	case Canceled:
		return "canceled"
	default:
		return "rejected"
	}
}

// Terminal reports whether the status can no longer change.
func (s OrderStatus) Terminal() bool {
	return s == Filled || s == Canceled || s == Rejected
}

// OrderRec is one locally-submitted order. The client order id is the
// authoritative key; OrderID is filled in on exchange acknowledgement.
type OrderRec struct {
	Ticker   string
	Side     model.Side
	Price    int // cents
	Qty      int64
	TIF      model.TIF
	PostOnly bool

	ClientOrderID uuid.UUID
	OrderID       string // empty until acked

	Status    OrderStatus
	FilledQty int64
	CreatedAt time.Time
}

// Remaining is the unfilled quantity.
func (r OrderRec) Remaining() int64 {
	return r.Qty - r.FilledQty
}

// Orders is the order-lifecycle table for one market. Not safe for
// concurrent use on its own; guarded by the owning TickerState lock.
type Orders struct {
	byClient map[uuid.UUID]*OrderRec
	byOrder  map[string]uuid.UUID
}

// NewOrders returns an empty lifecycle table.
func NewOrders() *Orders {
	return &Orders{
		byClient: make(map[uuid.UUID]*OrderRec),
		byOrder:  make(map[string]uuid.UUID),
	}
}

// InsertPending records intent before any network round-trip.
func (o *Orders) InsertPending(rec OrderRec) {
	rec.Status = PendingAck
	o.byClient[rec.ClientOrderID] = &rec
	if rec.OrderID != "" {
		o.byOrder[rec.OrderID] = rec.ClientOrderID
	}
}

// LinkOrderID attaches the exchange-assigned id to a pending record.
// Idempotent; unknown client ids are ignored.
func (o *Orders) LinkOrderID(clientID uuid.UUID, orderID string) {
	rec, ok := o.byClient[clientID]
	if !ok {
		return
	}
	rec.OrderID = orderID
	o.byOrder[orderID] = clientID
}

// Get returns a copy of a record by client id.
func (o *Orders) Get(clientID uuid.UUID) (OrderRec, bool) {
	rec, ok := o.byClient[clientID]
	if !ok {
		return OrderRec{}, false
	}
	return *rec, true
}

// ClientForOrder resolves an exchange id to the local client id.
func (o *Orders) ClientForOrder(orderID string) (uuid.UUID, bool) {
	id, ok := o.byOrder[orderID]
	return id, ok
}

// OnFillByClient accumulates a partial fill. Fill quantity beyond the
// requested quantity is capped: FilledQty never exceeds Qty, and the excess
// is dropped at this boundary. Returns (fullyFilled, known).
func (o *Orders) OnFillByClient(clientID uuid.UUID, fillQty int64) (bool, bool) {
	rec, ok := o.byClient[clientID]
	if !ok {
		return false, false
	}

	rec.FilledQty = min(rec.FilledQty+max(fillQty, 0), rec.Qty)

	if rec.FilledQty >= rec.Qty {
		rec.Status = Filled
		return true, true
	}
	return false, true
}

// OnFillByOrder is the fallback fill path keyed by exchange id.
func (o *Orders) OnFillByOrder(orderID string, fillQty int64) (bool, bool) {
	clientID, ok := o.byOrder[orderID]
	if !ok {
		return false, false
	}
	return o.OnFillByClient(clientID, fillQty)
}

// SetStatusByClient applies a status transition. Terminal states are never
// resurrected; a redundant or backwards transition is ignored.
func (o *Orders) SetStatusByClient(clientID uuid.UUID, st OrderStatus) {
	rec, ok := o.byClient[clientID]
	if !ok {
		return
	}
	if rec.Status.Terminal() {
		return
	}
	rec.Status = st
}

// SetStatusByOrder applies a status transition keyed by exchange id.
func (o *Orders) SetStatusByOrder(orderID string, st OrderStatus) {
	if clientID, ok := o.byOrder[orderID]; ok {
		o.SetStatusByClient(clientID, st)
	}
}

// Len returns the number of tracked orders.
func (o *Orders) Len() int {
	return len(o.byClient)
}
