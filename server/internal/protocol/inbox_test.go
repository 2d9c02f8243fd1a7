package protocol

import (
	"context"
	"testing"
	"time"

	"skirmish/server/internal/geom"
	"skirmish/server/internal/sim"
	"skirmish/server/internal/snapshot"
)

func TestInboxDrainAppliesConnectBeforeLaterCommands(t *testing.T) {
	sp, world, driver, _, cfg := testHarness(t)
	spawn := func(peerID string) *sim.Entity {
		return world.Spawn(&sim.Entity{Type: snapshot.EntityPlayer, Position: geom.Vec2{}})
	}
	inbox := NewInbox(sp, spawn, 8, nil)

	inbox.Connect("peer-a", time.Now())
	inbox.Input("peer-a", geom.Vec2{X: 1, Y: 0}, 1, 0, time.Now())

	inbox.Drain(context.Background())

	if _, ok := sp.Peer("peer-a"); !ok {
		t.Fatalf("expected peer-a to be connected after drain")
	}
	driver.Advance(context.Background(), cfg.TickDelta())
	p, _ := sp.Peer("peer-a")
	if p.LastInputTick() != 1 {
		t.Fatalf("expected queued input to be applied after connect, got last input tick %d", p.LastInputTick())
	}
}

func TestInboxDrainIsIdempotentWhenEmpty(t *testing.T) {
	sp, world, _, _, _ := testHarness(t)
	spawn := func(peerID string) *sim.Entity {
		return world.Spawn(&sim.Entity{Type: snapshot.EntityPlayer, Position: geom.Vec2{}})
	}
	inbox := NewInbox(sp, spawn, 8, nil)
	inbox.Drain(context.Background()) // must not block or panic on an empty channel
}

func TestInboxDisconnectRemovesPeer(t *testing.T) {
	sp, world, _, _, _ := testHarness(t)
	spawn := func(peerID string) *sim.Entity {
		return world.Spawn(&sim.Entity{Type: snapshot.EntityPlayer, Position: geom.Vec2{}})
	}
	inbox := NewInbox(sp, spawn, 8, nil)

	inbox.Connect("peer-a", time.Now())
	inbox.Drain(context.Background())
	if _, ok := sp.Peer("peer-a"); !ok {
		t.Fatalf("expected peer-a to be connected")
	}

	inbox.Disconnect("peer-a")
	inbox.Drain(context.Background())
	if _, ok := sp.Peer("peer-a"); ok {
		t.Fatalf("expected peer-a to be disconnected")
	}
}

func TestInboxEnqueueDropsOnOverflowWithoutBlocking(t *testing.T) {
	sp, world, _, _, _ := testHarness(t)
	spawn := func(peerID string) *sim.Entity {
		return world.Spawn(&sim.Entity{Type: snapshot.EntityPlayer, Position: geom.Vec2{}})
	}
	inbox := NewInbox(sp, spawn, 2, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			inbox.RequestFullSnapshot("peer-a")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Enqueue blocked past a full inbox instead of dropping")
	}
}

func TestInboxSetKeyframeIntervalAppliesOnDrain(t *testing.T) {
	sp, world, _, _, _ := testHarness(t)
	spawn := func(peerID string) *sim.Entity {
		return world.Spawn(&sim.Entity{Type: snapshot.EntityPlayer, Position: geom.Vec2{}})
	}
	inbox := NewInbox(sp, spawn, 8, nil)

	inbox.Connect("peer-a", time.Now())
	inbox.SetKeyframeInterval("peer-a", 12)
	inbox.Drain(context.Background())

	p, ok := sp.Peer("peer-a")
	if !ok {
		t.Fatalf("expected peer-a to be connected")
	}
	if !p.DueForCadenceKeyframe(12) {
		t.Fatalf("expected a cadence of 12 ticks to be applied from the queued command")
	}
}

func TestInboxDiagnosticsReturnsConnectedPeers(t *testing.T) {
	sp, world, _, _, _ := testHarness(t)
	spawn := func(peerID string) *sim.Entity {
		return world.Spawn(&sim.Entity{Type: snapshot.EntityPlayer, Position: geom.Vec2{}})
	}
	inbox := NewInbox(sp, spawn, 8, nil)

	inbox.Connect("peer-a", time.Now())
	inbox.Drain(context.Background())

	done := make(chan []DiagnosticsPeer, 1)
	go func() {
		done <- inbox.Diagnostics()
	}()

	time.Sleep(10 * time.Millisecond)
	inbox.Drain(context.Background())

	select {
	case diag := <-done:
		if len(diag) != 1 || diag[0].ID != "peer-a" {
			t.Fatalf("expected one diagnostics entry for peer-a, got %+v", diag)
		}
	case <-time.After(time.Second):
		t.Fatalf("Diagnostics never returned a result")
	}
}

func TestInboxVerifyHitReturnsNotFoundWhenNoHistory(t *testing.T) {
	sp, world, _, _, _ := testHarness(t)
	spawn := func(peerID string) *sim.Entity {
		return world.Spawn(&sim.Entity{Type: snapshot.EntityPlayer, Position: geom.Vec2{}})
	}
	inbox := NewInbox(sp, spawn, 8, nil)

	done := make(chan VerifyHitResult, 1)
	go func() {
		done <- inbox.VerifyHit(geom.Vec2{}, geom.Vec2{X: 1, Y: 0}, 500)
	}()

	// Drain must run on "the simulation goroutine" to service the query;
	// give the request a moment to land in the channel first.
	time.Sleep(10 * time.Millisecond)
	inbox.Drain(context.Background())

	select {
	case result := <-done:
		if result.Found {
			t.Fatalf("expected no hit with empty lag-comp history, got entity %d", result.EntityID)
		}
	case <-time.After(time.Second):
		t.Fatalf("VerifyHit never returned a result")
	}
}
