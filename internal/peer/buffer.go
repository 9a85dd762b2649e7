package peer

// pendingSignals buffers signaling that arrived before the negotiation
// object existed or before a remote description was set. A fresh buffer is
// created for every rebuilt session; buffers never survive reconnection.
type pendingSignals struct {
	offer      *SessionDescription
	answer     *SessionDescription
	candidates []ICECandidate
}

func newPendingSignals() *pendingSignals {
	return &pendingSignals{}
}

func (p *pendingSignals) putOffer(desc SessionDescription) {
	p.offer = &desc
}

func (p *pendingSignals) putAnswer(desc SessionDescription) {
	p.answer = &desc
}

func (p *pendingSignals) putCandidate(cand ICECandidate) {
	p.candidates = append(p.candidates, cand)
}

// takeCandidates empties the candidate list, preserving arrival order.
func (p *pendingSignals) takeCandidates() []ICECandidate {
	out := p.candidates
	p.candidates = nil
	return out
}
