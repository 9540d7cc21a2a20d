package market

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/kalshi-hedger/internal/model"
)

func pendingOrder(qty int64) OrderRec {
	return OrderRec{
		Ticker:        "KXBTC15M-TEST",
		Side:          model.Yes,
		Price:         44,
		Qty:           qty,
		TIF:           model.GTC,
		PostOnly:      true,
		ClientOrderID: uuid.New(),
		CreatedAt:     time.Now(),
	}
}

func TestFillReconciliation(t *testing.T) {
	o := NewOrders()
	rec := pendingOrder(5)
	o.InsertPending(rec)
	o.LinkOrderID(rec.ClientOrderID, "ord-1")

	full, known := o.OnFillByClient(rec.ClientOrderID, 2)
	if !known || full {
		t.Fatalf("first fill: full=%v known=%v, want partial known", full, known)
	}

	full, known = o.OnFillByOrder("ord-1", 3)
	if !known || !full {
		t.Fatalf("second fill: full=%v known=%v, want full known", full, known)
	}

	got, _ := o.Get(rec.ClientOrderID)
	if got.Status != Filled {
		t.Errorf("status = %v, want Filled", got.Status)
	}
	if got.FilledQty != 5 {
		t.Errorf("FilledQty = %d, want 5", got.FilledQty)
	}

	// Spurious third fill: capped, never exceeds requested quantity.
	o.OnFillByClient(rec.ClientOrderID, 4)
	got, _ = o.Get(rec.ClientOrderID)
	if got.FilledQty != 5 {
		t.Errorf("FilledQty after spurious fill = %d, want 5", got.FilledQty)
	}
}

func TestFillUnknownOrder(t *testing.T) {
	o := NewOrders()
	if _, known := o.OnFillByClient(uuid.New(), 1); known {
		t.Error("fill for unknown client id reported known")
	}
	if _, known := o.OnFillByOrder("nope", 1); known {
		t.Error("fill for unknown order id reported known")
	}
}

func TestLinkOrderIDIdempotent(t *testing.T) {
	o := NewOrders()
	rec := pendingOrder(1)
	o.InsertPending(rec)

	o.LinkOrderID(rec.ClientOrderID, "ord-9")
	o.LinkOrderID(rec.ClientOrderID, "ord-9")

	id, ok := o.ClientForOrder("ord-9")
	if !ok || id != rec.ClientOrderID {
		t.Errorf("ClientForOrder = %v (%v), want %v", id, ok, rec.ClientOrderID)
	}
}

func TestStatusMonotone(t *testing.T) {
	o := NewOrders()
	rec := pendingOrder(1)
	o.InsertPending(rec)
	o.LinkOrderID(rec.ClientOrderID, "ord-2")

	o.SetStatusByClient(rec.ClientOrderID, Resting)
	o.SetStatusByOrder("ord-2", Canceled)

	// Terminal state must not be resurrected.
	o.SetStatusByClient(rec.ClientOrderID, Resting)

	got, _ := o.Get(rec.ClientOrderID)
	if got.Status != Canceled {
		t.Errorf("status = %v, want Canceled (terminal states are sticky)", got.Status)
	}
}
