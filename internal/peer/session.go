package peer

import "context"

// SessionDescription is an opaque offer or answer payload.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate is an opaque connectivity candidate payload.
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// LocalMedia is the opaque handle to captured local tracks. Its concrete
// type is a contract between the caller and the Session implementation;
// the pion session accepts a []webrtc.TrackLocal.
type LocalMedia any

// RemoteMedia is the opaque handle to a remote track or stream delivered
// by the Session implementation.
type RemoteMedia any

// SessionConfig selects how the negotiation object routes connectivity.
type SessionConfig struct {
	// RelayOnly forces every candidate through a relay-capable path, the
	// last rung of the recovery ladder.
	RelayOnly bool
}

// SessionHandlers are the callbacks a Session fires into its Manager.
// All fields are optional.
type SessionHandlers struct {
	OnCandidate            func(ICECandidate)
	OnGatheringComplete    func()
	OnTransportStateChange func(TransportState)
	OnRemoteMedia          func(RemoteMedia)
	OnNegotiationNeeded    func()
}

// Session abstracts the negotiation object (an RTCPeerConnection or
// equivalent). The Manager owns exactly one live Session at a time and is
// the only caller of these methods.
type Session interface {
	AddMedia(media LocalMedia) error
	CreateOffer(iceRestart bool) (SessionDescription, error)
	CreateAnswer() (SessionDescription, error)
	SetLocalDescription(desc SessionDescription) error
	SetRemoteDescription(desc SessionDescription) error
	// Rollback discards a pending local offer, returning to stable.
	Rollback() error
	AddICECandidate(cand ICECandidate) error
	SignalingState() SignalingState
	HasRemoteDescription() bool
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// SessionFactory builds a fresh negotiation object. The recovery ladder
// calls it again for rebuilds and for the relay-only fallback.
type SessionFactory func(cfg SessionConfig, handlers SessionHandlers) (Session, error)

// Signaler carries this side's outbound signaling to the remote peer,
// typically through the room relay.
type Signaler interface {
	SendOffer(desc SessionDescription)
	SendAnswer(desc SessionDescription)
	SendCandidate(cand ICECandidate)
}
