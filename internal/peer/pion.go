package peer

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/webrtc/v3"
)

// DefaultICEServers mixes public STUN with relay-capable TURN so the
// relay-only fallback has somewhere to go.
func DefaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
		{URLs: []string{"stun:stun1.l.google.com:19302"}},
		{
			URLs:       []string{"turn:openrelay.metered.ca:80", "turn:openrelay.metered.ca:443"},
			Username:   "openrelayproject",
			Credential: "openrelayproject",
		},
	}
}

// NewPionFactory returns a SessionFactory backed by pion/webrtc. All
// sessions built by one factory share an API instance with the default
// browser codecs registered.
func NewPionFactory(iceServers []webrtc.ICEServer) (SessionFactory, error) {
	if len(iceServers) == 0 {
		iceServers = DefaultICEServers()
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	settingEngine := webrtc.SettingEngine{
		LoggerFactory: pionLoggerFactory{},
	}
	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithSettingEngine(settingEngine),
	)

	return func(cfg SessionConfig, handlers SessionHandlers) (Session, error) {
		rtcCfg := webrtc.Configuration{
			ICEServers:           iceServers,
			ICECandidatePoolSize: 10,
			BundlePolicy:         webrtc.BundlePolicyMaxBundle,
			RTCPMuxPolicy:        webrtc.RTCPMuxPolicyRequire,
		}
		if cfg.RelayOnly {
			rtcCfg.ICETransportPolicy = webrtc.ICETransportPolicyRelay
		}

		pc, err := api.NewPeerConnection(rtcCfg)
		if err != nil {
			return nil, err
		}
		s := &pionSession{pc: pc}

		pc.OnICECandidate(func(c *webrtc.ICECandidate) {
			if c == nil {
				if handlers.OnGatheringComplete != nil {
					handlers.OnGatheringComplete()
				}
				return
			}
			if handlers.OnCandidate != nil {
				init := c.ToJSON()
				handlers.OnCandidate(ICECandidate{
					Candidate:     init.Candidate,
					SDPMid:        init.SDPMid,
					SDPMLineIndex: init.SDPMLineIndex,
				})
			}
		})
		pc.OnICEConnectionStateChange(func(st webrtc.ICEConnectionState) {
			if handlers.OnTransportStateChange != nil {
				handlers.OnTransportStateChange(transportStateFromICE(st))
			}
		})
		pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
			if handlers.OnRemoteMedia != nil {
				handlers.OnRemoteMedia(track)
			}
		})
		pc.OnNegotiationNeeded(func() {
			if handlers.OnNegotiationNeeded != nil {
				handlers.OnNegotiationNeeded()
			}
		})
		return s, nil
	}, nil
}

// pionSession adapts a *webrtc.PeerConnection to the Session interface.
type pionSession struct {
	pc *webrtc.PeerConnection
}

func (s *pionSession) AddMedia(media LocalMedia) error {
	tracks, ok := media.([]webrtc.TrackLocal)
	if !ok {
		return fmt.Errorf("pion session expects []webrtc.TrackLocal, got %T", media)
	}
	for _, track := range tracks {
		if _, err := s.pc.AddTrack(track); err != nil {
			return err
		}
	}
	return nil
}

func (s *pionSession) CreateOffer(iceRestart bool) (SessionDescription, error) {
	var opts *webrtc.OfferOptions
	if iceRestart {
		opts = &webrtc.OfferOptions{ICERestart: true}
	}
	offer, err := s.pc.CreateOffer(opts)
	if err != nil {
		return SessionDescription{}, err
	}
	return SessionDescription{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

func (s *pionSession) CreateAnswer() (SessionDescription, error) {
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return SessionDescription{}, err
	}
	return SessionDescription{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

func (s *pionSession) SetLocalDescription(desc SessionDescription) error {
	return s.pc.SetLocalDescription(webrtc.SessionDescription{
		Type: webrtc.NewSDPType(desc.Type),
		SDP:  desc.SDP,
	})
}

func (s *pionSession) SetRemoteDescription(desc SessionDescription) error {
	return s.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.NewSDPType(desc.Type),
		SDP:  desc.SDP,
	})
}

func (s *pionSession) Rollback() error {
	return s.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback})
}

func (s *pionSession) AddICECandidate(cand ICECandidate) error {
	return s.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     cand.Candidate,
		SDPMid:        cand.SDPMid,
		SDPMLineIndex: cand.SDPMLineIndex,
	})
}

func (s *pionSession) SignalingState() SignalingState {
	switch s.pc.SignalingState() {
	case webrtc.SignalingStateStable:
		return SignalingStable
	case webrtc.SignalingStateHaveLocalOffer:
		return SignalingHaveLocalOffer
	case webrtc.SignalingStateHaveRemoteOffer:
		return SignalingHaveRemoteOffer
	case webrtc.SignalingStateClosed:
		return SignalingClosed
	default:
		return SignalingStable
	}
}

func (s *pionSession) HasRemoteDescription() bool {
	return s.pc.RemoteDescription() != nil
}

func (s *pionSession) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	report := s.pc.GetStats()

	var out Stats
	for _, raw := range report {
		switch st := raw.(type) {
		case webrtc.ICECandidatePairStats:
			if st.State == webrtc.StatsICECandidatePairStateSucceeded {
				out.RTT = secondsToDuration(st.CurrentRoundTripTime)
			}
		case webrtc.InboundRTPStreamStats:
			out.BytesReceived += st.BytesReceived
			out.PacketsReceived += uint64(st.PacketsReceived)
			received := float64(st.PacketsReceived) + float64(st.PacketsLost)
			if received > 0 {
				out.PacketLoss = float64(st.PacketsLost) / received
			}
		case webrtc.OutboundRTPStreamStats:
			out.BytesSent += st.BytesSent
			out.PacketsSent += uint64(st.PacketsSent)
		}
	}
	return out, nil
}

func (s *pionSession) Close() error {
	return s.pc.Close()
}

func transportStateFromICE(st webrtc.ICEConnectionState) TransportState {
	switch st {
	case webrtc.ICEConnectionStateChecking:
		return TransportChecking
	case webrtc.ICEConnectionStateConnected:
		return TransportConnected
	case webrtc.ICEConnectionStateCompleted:
		return TransportCompleted
	case webrtc.ICEConnectionStateDisconnected:
		return TransportDisconnected
	case webrtc.ICEConnectionStateFailed:
		return TransportFailed
	case webrtc.ICEConnectionStateClosed:
		return TransportClosed
	default:
		return TransportNew
	}
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}
