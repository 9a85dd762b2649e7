package peer

import "time"

// ConnectionState is the lifecycle of one negotiated media session.
type ConnectionState string

const (
	StateNew          ConnectionState = "new"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateFailed       ConnectionState = "failed"
	StateClosed       ConnectionState = "closed"
)

// TransportState mirrors the underlying ICE transport's connection state.
type TransportState string

const (
	TransportNew          TransportState = "new"
	TransportChecking     TransportState = "checking"
	TransportConnected    TransportState = "connected"
	TransportCompleted    TransportState = "completed"
	TransportDisconnected TransportState = "disconnected"
	TransportFailed       TransportState = "failed"
	TransportClosed       TransportState = "closed"
)

// SignalingState mirrors the negotiation object's signaling state.
type SignalingState string

const (
	SignalingStable          SignalingState = "stable"
	SignalingHaveLocalOffer  SignalingState = "have-local-offer"
	SignalingHaveRemoteOffer SignalingState = "have-remote-offer"
	SignalingClosed          SignalingState = "closed"
)

// Quality is the advisory classification of connection health. It is
// observability only and never drives recovery.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
	QualityUnknown   Quality = "unknown"
)

// Stats is one telemetry sample from the transport.
type Stats struct {
	RTT             time.Duration
	PacketLoss      float64 // ratio in [0,1]
	BytesSent       uint64
	BytesReceived   uint64
	PacketsSent     uint64
	PacketsReceived uint64
	Quality         Quality
}

// ClassifyQuality buckets a sample into threshold bands.
func ClassifyQuality(s Stats) Quality {
	switch {
	case s.RTT < 100*time.Millisecond && s.PacketLoss < 0.01:
		return QualityExcellent
	case s.RTT < 200*time.Millisecond && s.PacketLoss < 0.03:
		return QualityGood
	case s.RTT < 500*time.Millisecond && s.PacketLoss < 0.05:
		return QualityFair
	default:
		return QualityPoor
	}
}
