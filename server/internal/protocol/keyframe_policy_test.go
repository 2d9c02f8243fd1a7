package protocol

import "testing"

func TestKeyframePolicyConsumeOnce(t *testing.T) {
	var p keyframePolicy
	if _, pending := p.consume(); pending {
		t.Fatalf("expected no pending request initially")
	}

	p.request("request_full_snapshot")
	reason, pending := p.consume()
	if !pending || reason != "request_full_snapshot" {
		t.Fatalf("expected pending request with reason, got reason=%q pending=%v", reason, pending)
	}

	if _, pending := p.consume(); pending {
		t.Fatalf("expected request to be cleared after being consumed")
	}
}
