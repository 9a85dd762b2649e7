package peer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"
)

// Role fixes which side of the pairing initiates negotiation. Exactly one
// side is the offerer; only it creates offers in response to local track
// changes, which avoids double-offer races by construction.
type Role string

const (
	RoleOfferer  Role = "offerer"
	RoleAnswerer Role = "answerer"
)

// Config carries the timeout and retry policy. Zero values take defaults.
type Config struct {
	ICEGatheringTimeout time.Duration // default 15s
	OfferAnswerTimeout  time.Duration // default 10s
	ReconnectDelay      time.Duration // default 5s, debounce for transient disconnects
	MaxRetries          int           // default 3
	RetryDelay          time.Duration // default 1s
	BackoffMultiplier   float64       // default 2
	StatsInterval       time.Duration // default 5s
}

func (c Config) withDefaults() Config {
	if c.ICEGatheringTimeout <= 0 {
		c.ICEGatheringTimeout = 15 * time.Second
	}
	if c.OfferAnswerTimeout <= 0 {
		c.OfferAnswerTimeout = 10 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = 2
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = 5 * time.Second
	}
	return c
}

// Manager drives one peer pairing to a connected media path and keeps it
// alive across transient failures. Signal handlers never return errors:
// signaling that cannot be applied yet is buffered, and signaling that is
// invalid for the current state is logged and dropped.
//
// Session handlers must reach the Manager asynchronously; a SessionFactory
// must not invoke them synchronously from inside the factory call.
type Manager struct {
	mu sync.Mutex

	cfg      Config
	role     Role
	factory  SessionFactory
	signaler Signaler

	session Session
	media   LocalMedia
	pending *pendingSignals

	state       ConnectionState
	makingOffer bool
	retryCount  int
	// gen identifies the current session instance; stale timer and handler
	// callbacks from an earlier instance check it and bail out.
	gen    int
	closed bool

	iceGatherTimer   *time.Timer
	offerAnswerTimer *time.Timer
	reconnectTimer   *time.Timer
	statsStop        chan struct{}

	onStateChange func(ConnectionState)
	onRemoteMedia func(RemoteMedia)
	onError       func(error)
	onStats       func(Stats)
}

func NewManager(role Role, factory SessionFactory, signaler Signaler, cfg Config) *Manager {
	return &Manager{
		cfg:      cfg.withDefaults(),
		role:     role,
		factory:  factory,
		signaler: signaler,
		pending:  newPendingSignals(),
		state:    StateNew,
	}
}

// SetOnStateChange registers the state observer. One observer of each
// kind; the last registration wins.
func (m *Manager) SetOnStateChange(fn func(ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

func (m *Manager) SetOnRemoteMedia(fn func(RemoteMedia)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRemoteMedia = fn
}

func (m *Manager) SetOnError(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

func (m *Manager) SetOnStats(fn func(Stats)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStats = fn
}

// State returns the current connection state.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the media path is up.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Initialize builds the negotiation object, attaches local media, and
// flushes any signaling buffered before this point.
func (m *Manager) Initialize(media LocalMedia) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("peer manager is closed")
	}
	if m.session != nil {
		m.mu.Unlock()
		return errors.New("peer manager already initialized")
	}
	m.media = media

	emits := []func(){m.transitionLocked(StateConnecting)}
	if err := m.buildSessionLocked(false); err != nil {
		emits = append(emits, m.transitionLocked(StateFailed))
		m.mu.Unlock()
		runAll(emits)
		return fmt.Errorf("initialize peer session: %w", err)
	}
	emits = append(emits, m.flushPendingLocked()...)
	m.mu.Unlock()
	runAll(emits)
	return nil
}

// HandleOffer applies or buffers a remote offer. Glare is resolved
// asymmetrically: the offerer ignores the conflicting remote offer, the
// answerer rolls back its own pending offer and accepts the remote one.
func (m *Manager) HandleOffer(desc SessionDescription) {
	m.mu.Lock()
	emits := m.handleOfferLocked(desc)
	m.mu.Unlock()
	runAll(emits)
}

func (m *Manager) handleOfferLocked(desc SessionDescription) []func() {
	if m.closed {
		return nil
	}
	if m.session == nil {
		log.Printf("Peer session not ready, buffering offer")
		m.pending.putOffer(desc)
		return nil
	}
	if m.session.SignalingState() != SignalingStable || m.makingOffer {
		if m.role == RoleOfferer {
			log.Printf("Glare: ignoring remote offer on offerer side")
			return nil
		}
		if err := m.session.Rollback(); err != nil {
			log.Printf("Rollback before accepting remote offer failed: %v", err)
		}
	}
	return m.acceptOfferLocked(desc)
}

func (m *Manager) acceptOfferLocked(desc SessionDescription) []func() {
	if err := m.session.SetRemoteDescription(desc); err != nil {
		log.Printf("Dropping offer: %v", err)
		return nil
	}
	answer, err := m.session.CreateAnswer()
	if err != nil {
		log.Printf("Creating answer failed: %v", err)
		return nil
	}
	if err := m.session.SetLocalDescription(answer); err != nil {
		log.Printf("Applying local answer failed: %v", err)
		return nil
	}
	m.drainCandidatesLocked()
	return []func(){func() { m.signaler.SendAnswer(answer) }}
}

// HandleAnswer applies or buffers a remote answer. An answer with no
// outstanding local offer is logged and dropped.
func (m *Manager) HandleAnswer(desc SessionDescription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if m.session == nil {
		log.Printf("Peer session not ready, buffering answer")
		m.pending.putAnswer(desc)
		return
	}
	if m.session.SignalingState() != SignalingHaveLocalOffer {
		log.Printf("Dropping unexpected answer in state %s", m.session.SignalingState())
		return
	}
	if err := m.session.SetRemoteDescription(desc); err != nil {
		log.Printf("Dropping answer: %v", err)
		return
	}
	m.stopTimerLocked(&m.offerAnswerTimer)
	m.drainCandidatesLocked()
}

// HandleCandidate applies or buffers a remote ICE candidate. Candidate
// application errors are never fatal; a stale candidate must not abort
// anything.
func (m *Manager) HandleCandidate(cand ICECandidate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if m.session == nil || !m.session.HasRemoteDescription() {
		m.pending.putCandidate(cand)
		return
	}
	if err := m.session.AddICECandidate(cand); err != nil {
		log.Printf("Ignoring ICE candidate apply error: %v", err)
	}
}

// Cleanup cancels every timer owned by this manager, closes the session,
// and transitions to Closed. Safe to call from any state, any number of
// times.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.gen++
	m.stopTimerLocked(&m.iceGatherTimer)
	m.stopTimerLocked(&m.offerAnswerTimer)
	m.stopTimerLocked(&m.reconnectTimer)
	m.stopStatsLocked()
	if m.session != nil {
		if err := m.session.Close(); err != nil {
			log.Printf("Closing peer session: %v", err)
		}
		m.session = nil
	}
	emit := m.transitionLocked(StateClosed)
	m.mu.Unlock()
	emit()
}

// --- session construction and pending-signal flush ---

func (m *Manager) buildSessionLocked(relayOnly bool) error {
	m.gen++
	gen := m.gen
	handlers := SessionHandlers{
		OnCandidate: func(c ICECandidate) {
			m.localCandidate(gen, c)
		},
		OnGatheringComplete: func() {
			m.gatheringComplete(gen)
		},
		OnTransportStateChange: func(st TransportState) {
			m.transportStateChanged(gen, st)
		},
		OnRemoteMedia: func(media RemoteMedia) {
			m.remoteMediaReady(gen, media)
		},
		OnNegotiationNeeded: func() {
			m.negotiationNeeded(gen)
		},
	}

	sess, err := m.factory(SessionConfig{RelayOnly: relayOnly}, handlers)
	if err != nil {
		return err
	}
	m.session = sess
	if m.media != nil {
		if err := sess.AddMedia(m.media); err != nil {
			sess.Close()
			m.session = nil
			return fmt.Errorf("attach local media: %w", err)
		}
	}
	m.armTimerLocked(&m.iceGatherTimer, m.cfg.ICEGatheringTimeout, gen, "ICE gathering")
	return nil
}

func (m *Manager) rebuildLocked(relayOnly bool) error {
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
	// Anything buffered for the dead session is stale now.
	m.pending = newPendingSignals()
	return m.buildSessionLocked(relayOnly)
}

// flushPendingLocked drains the buffer in order: offer first, then answer,
// then candidates. Each application failure is logged and skipped.
func (m *Manager) flushPendingLocked() []func() {
	var emits []func()
	if m.pending.offer != nil {
		offer := *m.pending.offer
		m.pending.offer = nil
		emits = append(emits, m.acceptOfferLocked(offer)...)
	}
	if m.pending.answer != nil {
		answer := *m.pending.answer
		m.pending.answer = nil
		if err := m.session.SetRemoteDescription(answer); err != nil {
			log.Printf("Skipping buffered answer: %v", err)
		} else {
			m.stopTimerLocked(&m.offerAnswerTimer)
		}
	}
	m.drainCandidatesLocked()
	return emits
}

func (m *Manager) drainCandidatesLocked() {
	if m.session == nil || !m.session.HasRemoteDescription() {
		return
	}
	for _, cand := range m.pending.takeCandidates() {
		if err := m.session.AddICECandidate(cand); err != nil {
			log.Printf("Skipping buffered ICE candidate: %v", err)
		}
	}
}

// --- session handler entry points (gen-guarded) ---

func (m *Manager) localCandidate(gen int, cand ICECandidate) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	sig := m.signaler
	m.mu.Unlock()
	sig.SendCandidate(cand)
}

func (m *Manager) gatheringComplete(gen int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || gen != m.gen {
		return
	}
	m.stopTimerLocked(&m.iceGatherTimer)
}

func (m *Manager) remoteMediaReady(gen int, media RemoteMedia) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	cb := m.onRemoteMedia
	m.mu.Unlock()
	if cb != nil {
		cb(media)
	}
}

func (m *Manager) negotiationNeeded(gen int) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	emits := m.negotiateLocked()
	m.mu.Unlock()
	runAll(emits)
}

func (m *Manager) transportStateChanged(gen int, st TransportState) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	var emits []func()
	switch st {
	case TransportConnected, TransportCompleted:
		emits = append(emits, m.transitionLocked(StateConnected))
		m.retryCount = 0
		m.startStatsLocked()
	case TransportDisconnected:
		emits = append(emits, m.transitionLocked(StateDisconnected))
		m.scheduleReconnectLocked()
	case TransportFailed:
		emits = m.failLocked("transport reported failure")
	}
	m.mu.Unlock()
	runAll(emits)
}

// --- negotiation ---

// negotiateLocked creates and sends an offer. Only the designated offerer
// ever does this.
func (m *Manager) negotiateLocked() []func() {
	if m.role != RoleOfferer || m.session == nil || m.closed {
		return nil
	}
	m.makingOffer = true
	offer, err := m.session.CreateOffer(false)
	if err == nil {
		err = m.session.SetLocalDescription(offer)
	}
	m.makingOffer = false
	if err != nil {
		log.Printf("Creating offer failed: %v", err)
		return nil
	}
	gen := m.gen
	m.armTimerLocked(&m.offerAnswerTimer, m.cfg.OfferAnswerTimeout, gen, "offer/answer exchange")
	return []func(){func() { m.signaler.SendOffer(offer) }}
}

// --- failure and recovery ---

func (m *Manager) armTimerLocked(slot **time.Timer, d time.Duration, gen int, what string) {
	m.stopTimerLocked(slot)
	*slot = time.AfterFunc(d, func() {
		m.mu.Lock()
		if m.closed || gen != m.gen {
			m.mu.Unlock()
			return
		}
		log.Printf("%s timed out", what)
		emits := m.failLocked(what + " timeout")
		m.mu.Unlock()
		runAll(emits)
	})
}

func (m *Manager) stopTimerLocked(slot **time.Timer) {
	if *slot != nil {
		(*slot).Stop()
		*slot = nil
	}
}

// failLocked records the failure and either schedules the next rung of the
// recovery ladder or, once retries are exhausted, surfaces a terminal
// error through the error callback.
func (m *Manager) failLocked(reason string) []func() {
	if m.closed || m.state == StateClosed {
		return nil
	}
	emits := []func(){m.transitionLocked(StateFailed)}
	m.stopTimerLocked(&m.iceGatherTimer)
	m.stopTimerLocked(&m.offerAnswerTimer)

	if m.retryCount >= m.cfg.MaxRetries {
		err := fmt.Errorf("connection failed after %d recovery attempts: %s", m.retryCount, reason)
		if cb := m.onError; cb != nil {
			emits = append(emits, func() { cb(err) })
		}
		return emits
	}

	delay := time.Duration(float64(m.cfg.RetryDelay) * math.Pow(m.cfg.BackoffMultiplier, float64(m.retryCount)))
	attempt := m.retryCount + 1
	log.Printf("Recovery attempt %d/%d in %s", attempt, m.cfg.MaxRetries, delay)
	m.stopTimerLocked(&m.reconnectTimer)
	m.reconnectTimer = time.AfterFunc(delay, m.recover)
	return emits
}

func (m *Manager) recover() {
	m.mu.Lock()
	m.reconnectTimer = nil
	if m.closed || m.state != StateFailed {
		m.mu.Unlock()
		return
	}
	emits := m.recoverLocked()
	m.mu.Unlock()
	runAll(emits)
}

// recoverLocked walks the ladder: ICE restart while attempts remain beyond
// the last one, otherwise a full rebuild, forcing relay-only transport on
// the final permitted attempt.
func (m *Manager) recoverLocked() []func() {
	attempt := m.retryCount + 1

	if m.session != nil && attempt < m.cfg.MaxRetries {
		offer, err := m.session.CreateOffer(true)
		if err == nil {
			err = m.session.SetLocalDescription(offer)
		}
		if err == nil {
			log.Printf("Attempting ICE restart (attempt %d)", attempt)
			m.retryCount++
			emits := []func(){m.transitionLocked(StateConnecting)}
			m.armTimerLocked(&m.offerAnswerTimer, m.cfg.OfferAnswerTimeout, m.gen, "offer/answer exchange")
			emits = append(emits, func() { m.signaler.SendOffer(offer) })
			return emits
		}
		log.Printf("ICE restart failed, rebuilding: %v", err)
	}

	relayOnly := attempt >= m.cfg.MaxRetries
	if relayOnly {
		log.Printf("Final attempt: falling back to relay-only transport")
	}
	if err := m.rebuildLocked(relayOnly); err != nil {
		m.retryCount++
		log.Printf("Rebuild failed: %v", err)
		return m.failLocked("session rebuild failed")
	}
	m.retryCount++
	emits := []func(){m.transitionLocked(StateConnecting)}
	emits = append(emits, m.negotiateLocked()...)
	return emits
}

// scheduleReconnectLocked debounces a transport-reported disconnect: if it
// has not healed by itself after ReconnectDelay, rebuild in place without
// burning a retry attempt.
func (m *Manager) scheduleReconnectLocked() {
	if m.reconnectTimer != nil {
		return
	}
	m.reconnectTimer = time.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.mu.Lock()
		m.reconnectTimer = nil
		if m.closed || m.state != StateDisconnected {
			m.mu.Unlock()
			return
		}
		log.Printf("Still disconnected after %s, rebuilding session", m.cfg.ReconnectDelay)
		var emits []func()
		if err := m.rebuildLocked(false); err != nil {
			emits = m.failLocked("reconnect rebuild failed")
		} else {
			emits = []func(){m.transitionLocked(StateConnecting)}
			emits = append(emits, m.negotiateLocked()...)
		}
		m.mu.Unlock()
		runAll(emits)
	})
}

// --- quality telemetry ---

func (m *Manager) startStatsLocked() {
	if m.statsStop != nil {
		return
	}
	stop := make(chan struct{})
	m.statsStop = stop
	go m.statsLoop(stop)
}

func (m *Manager) stopStatsLocked() {
	if m.statsStop != nil {
		close(m.statsStop)
		m.statsStop = nil
	}
}

func (m *Manager) statsLoop(stop chan struct{}) {
	ticker := time.NewTicker(m.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.closed || m.state != StateConnected || m.session == nil {
				m.mu.Unlock()
				continue
			}
			sess := m.session
			cb := m.onStats
			m.mu.Unlock()

			ctx, cancel := context.WithTimeout(context.Background(), m.cfg.StatsInterval)
			sample, err := sess.Stats(ctx)
			cancel()
			if err != nil {
				log.Printf("Stats poll failed: %v", err)
				continue
			}
			sample.Quality = ClassifyQuality(sample)
			if cb != nil {
				cb(sample)
			}
		}
	}
}

func (m *Manager) transitionLocked(st ConnectionState) func() {
	if m.state == st {
		return func() {}
	}
	m.state = st
	cb := m.onStateChange
	if cb == nil {
		return func() {}
	}
	return func() { cb(st) }
}

func runAll(fns []func()) {
	for _, fn := range fns {
		if fn != nil {
			fn()
		}
	}
}
