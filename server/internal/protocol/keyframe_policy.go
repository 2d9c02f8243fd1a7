package protocol

// keyframePolicy decides whether a peer's next snapshot build must skip
// delta encoding (baseline = nil). Forcing is requested either explicitly
// (a reliable request_full_snapshot RPC) or implicitly (the acked baseline
// fell out of history), and is consumed exactly once by the next build.
type keyframePolicy struct {
	pending bool
	reason  string
}

func (p *keyframePolicy) request(reason string) {
	p.pending = true
	p.reason = reason
}

// consume reports whether a keyframe was pending and clears the flag.
func (p *keyframePolicy) consume() (string, bool) {
	if !p.pending {
		return "", false
	}
	reason := p.reason
	p.pending = false
	p.reason = ""
	return reason, true
}
