package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rickgao/kalshi-hedger/internal/market"
	"github.com/rickgao/kalshi-hedger/internal/model"
)

func TestDriverEmitsDecision(t *testing.T) {
	shared := market.NewShared([]string{"KXBTC15M-TEST"})
	ts, _ := shared.Get("KXBTC15M-TEST")

	nowUnix := time.Now().Unix()
	ts.WithWrite(func(m *market.Market) {
		m.CloseTS = nowUnix + 890
		m.OpenTS = m.CloseTS - 900
		seedBook(m, 40, 10, 55, 10)
	})

	out := make(chan model.ExecCommand, 8)
	d := NewDriver(newTestDecider(testStrategy()), shared, out, 10*time.Millisecond, nil)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := d.Stop(ctx); err != nil {
			t.Errorf("Stop: %v", err)
		}
	}()

	select {
	case cmd := <-out:
		if cmd.Place == nil {
			t.Fatalf("expected a place command, got %+v", cmd)
		}
		if cmd.Place.Side != model.Yes || !cmd.Place.PostOnly {
			t.Errorf("unexpected command: %+v", cmd.Place)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("driver emitted nothing")
	}
}

func TestDriverWakeVisitsOnlyDirty(t *testing.T) {
	shared := market.NewShared([]string{"A", "B"})
	a, _ := shared.Get("A")
	b, _ := shared.Get("B")

	// Drain the initial dirty edges.
	a.TakeDirty()
	b.TakeDirty()
	a.MarkDirty()

	out := make(chan model.ExecCommand, 8)
	d := NewDriver(newTestDecider(testStrategy()), shared, out, time.Hour, nil)
	d.ctx, d.cancel = context.WithCancel(context.Background())
	defer d.cancel()

	d.pass(false)

	if a.TakeDirty() {
		t.Error("dirty instrument was not cleared by the pass")
	}
}
