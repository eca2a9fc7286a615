package plugin

import (
	"context"
	"testing"
	"time"
)

type recordingPlugin struct {
	name string

	invoicesSubmitted int
	auctionsClosed    []int
	lowLiquidity      []int
}

func (p *recordingPlugin) Name() string { return p.name }

func (p *recordingPlugin) OnInvoiceSubmitted(_ context.Context, _ interface{}) error {
	p.invoicesSubmitted++
	return nil
}

func (p *recordingPlugin) OnAuctionClosed(_ context.Context, _ string, eligibleBids int) error {
	p.auctionsClosed = append(p.auctionsClosed, eligibleBids)
	return nil
}

func (p *recordingPlugin) OnLowLiquidity(_ context.Context, _ string, eligibleBids int) error {
	p.lowLiquidity = append(p.lowLiquidity, eligibleBids)
	return nil
}

func TestRegisterCachesImplementedInterfaces(t *testing.T) {
	r := NewRegistry()
	p := &recordingPlugin{name: "recorder"}

	if err := r.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 registered plugin, got %d", r.Count())
	}
	if got := r.Get("recorder"); got == nil {
		t.Fatal("expected Get to find the registered plugin")
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	p1 := &recordingPlugin{name: "dup"}
	p2 := &recordingPlugin{name: "dup"}

	if err := r.Register(p1); err != nil {
		t.Fatalf("Register p1: %v", err)
	}
	if err := r.Register(p2); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestEmitInvoiceSubmittedDispatchesToAllPlugins(t *testing.T) {
	r := NewRegistry()
	p := &recordingPlugin{name: "recorder"}
	if err := r.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	r.EmitInvoiceSubmitted(context.Background(), struct{}{})

	if p.invoicesSubmitted != 1 {
		t.Fatalf("expected 1 invocation, got %d", p.invoicesSubmitted)
	}
}

// TestEmitAuctionClosedCascadesLowLiquidity verifies the under-threshold
// cascade: closing an auction with fewer than three eligible bids
// additionally fires OnLowLiquidity, in one EmitAuctionClosed call. An
// auction with three eligible bids does not cascade.
func TestEmitAuctionClosedCascadesLowLiquidity(t *testing.T) {
	r := NewRegistry()
	p := &recordingPlugin{name: "recorder"}
	if err := r.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	r.EmitAuctionClosed(context.Background(), "inv-1", 3)
	if len(p.lowLiquidity) != 0 {
		t.Fatalf("expected no low-liquidity cascade for 3 eligible bids, got %d calls", len(p.lowLiquidity))
	}

	r.EmitAuctionClosed(context.Background(), "inv-2", 0)
	if len(p.lowLiquidity) != 1 {
		t.Fatalf("expected low-liquidity cascade for 0 eligible bids, got %d calls", len(p.lowLiquidity))
	}

	if len(p.auctionsClosed) != 2 {
		t.Fatalf("expected OnAuctionClosed fired for both calls, got %d", len(p.auctionsClosed))
	}
}

type blockingPlugin struct{ unblock chan struct{} }

func (blockingPlugin) Name() string { return "blocker" }

func (p blockingPlugin) OnInvoiceSubmitted(ctx context.Context, _ interface{}) error {
	<-p.unblock
	return nil
}

func TestCallWithTimeoutReturnsOnContextCancel(t *testing.T) {
	r := NewRegistry()
	p := blockingPlugin{unblock: make(chan struct{})}
	defer close(p.unblock)

	if err := r.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.EmitInvoiceSubmitted(ctx, struct{}{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EmitInvoiceSubmitted did not return after context cancellation")
	}
}
