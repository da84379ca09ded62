package services

import (
	"errors"
	"sync"
	"time"

	"impaai/internal/repo"
	"impaai/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Session states for one QR-pairing attempt
const (
	SessionStateIdle     = "idle"
	SessionStateFetching = "fetching"
	SessionStateActive   = "active"
	SessionStateExpired  = "expired"
	SessionStatePaired   = "paired"
	SessionStateError    = "error"
)

// PairingSession is a caller-visible snapshot of one open pairing attempt
type PairingSession struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	State        string    `json:"state"`
	QRCode       string    `json:"qr_code,omitempty"`
	IssuedAt     time.Time `json:"issued_at,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// pairingSession is the manager-internal state for one connection.
// gen increases every time a session is superseded so that late timer fires
// and in-flight gateway results for a torn-down session are discarded.
type pairingSession struct {
	connectionID uuid.UUID
	instanceName string
	gen          uint64
	state        string
	qrCode       string
	issuedAt     time.Time
	expiresAt    time.Time
	expiryTimer  *time.Timer
}

// PairingManager owns QR-code acquisition, the validity countdown and
// refresh-on-expiry for connection pairing. At most one session is active per
// connection; opening or refreshing supersedes any prior session. Session
// state is purely in-memory: a restart requires a fresh OpenSession, which is
// acceptable because the gateway stays authoritative for real status.
type PairingManager struct {
	gateway      PairingGateway
	connections  *repo.ConnectionRepository
	poller       *StatusPoller
	qrTTL        time.Duration
	pollInterval time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*pairingSession
	lastGen  uint64
}

// NewPairingManager creates a new pairing session manager. qrTTL is the QR
// validity window, pollInterval the status poll cadence.
func NewPairingManager(gateway PairingGateway, connections *repo.ConnectionRepository, poller *StatusPoller, qrTTL, pollInterval time.Duration) *PairingManager {
	if qrTTL <= 0 {
		qrTTL = 40 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &PairingManager{
		gateway:      gateway,
		connections:  connections,
		poller:       poller,
		qrTTL:        qrTTL,
		pollInterval: pollInterval,
		sessions:     make(map[uuid.UUID]*pairingSession),
	}
}

// OpenSession starts a pairing attempt for a connection: it tears down any
// prior session, requests a QR code from the gateway, starts the validity
// countdown and the status poll, and marks the connection as connecting.
func (m *PairingManager) OpenSession(connectionID uuid.UUID) (*PairingSession, error) {
	connection, err := m.connections.GetByID(connectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "get connection", Err: err}
	}

	m.mu.Lock()
	m.teardownLocked(connectionID)
	m.lastGen++
	session := &pairingSession{
		connectionID: connectionID,
		instanceName: connection.InstanceName,
		gen:          m.lastGen,
		state:        SessionStateFetching,
	}
	m.sessions[connectionID] = session
	gen := session.gen
	m.mu.Unlock()

	qrCode, err := m.gateway.FetchQRCode(connection.InstanceName)
	if err != nil {
		m.mu.Lock()
		if current, ok := m.sessions[connectionID]; ok && current.gen == gen {
			current.state = SessionStateError
		}
		m.mu.Unlock()
		return nil, err
	}

	m.mu.Lock()
	current, ok := m.sessions[connectionID]
	if !ok || current.gen != gen {
		// Superseded or closed while the QR fetch was in flight; discard.
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	now := time.Now()
	current.state = SessionStateActive
	current.qrCode = qrCode
	current.issuedAt = now
	current.expiresAt = now.Add(m.qrTTL)
	current.expiryTimer = time.AfterFunc(m.qrTTL, func() {
		m.expire(connectionID, gen)
	})
	snapshot := current.snapshot()
	m.mu.Unlock()

	if err := m.connections.UpdateStatus(connectionID, models.ConnectionStatusConnecting); err != nil {
		log.Error().Err(err).Str("connection_id", connectionID.String()).
			Msg("Failed to update connection status to connecting")
	}

	// Polling starts under the session lock so a concurrent close or reopen
	// either runs before (no poll is started) or after (teardown stops it).
	m.mu.Lock()
	current, ok = m.sessions[connectionID]
	if !ok || current.gen != gen {
		// Closed while the status update was in flight; do not start polling.
		m.mu.Unlock()
		return &snapshot, nil
	}
	m.poller.StartPolling(connectionID, connection.InstanceName, m.pollInterval, PollerCallbacks{
		OnConnected: func(id uuid.UUID, phoneNumber *string) {
			m.handlePaired(id, gen, phoneNumber)
		},
		OnStatus: func(id uuid.UUID, status string) {
			log.Debug().Str("connection_id", id.String()).Str("status", status).
				Msg("Pairing status observed")
		},
		OnGaveUp: func(id uuid.UUID, pollErr error) {
			m.handlePollFailure(id, gen, pollErr)
		},
	})
	m.mu.Unlock()

	log.Info().Str("connection_id", connectionID.String()).Str("instance", connection.InstanceName).
		Msg("Pairing session opened")
	return &snapshot, nil
}

// RefreshSession invalidates the existing session for a connection and opens a
// fresh one with a new QR code and a reset countdown.
func (m *PairingManager) RefreshSession(connectionID uuid.UUID) (*PairingSession, error) {
	return m.OpenSession(connectionID)
}

// CloseSession cancels all timers and polling for a connection; idempotent.
// No gateway call is made.
func (m *PairingManager) CloseSession(connectionID uuid.UUID) {
	m.mu.Lock()
	m.teardownLocked(connectionID)
	delete(m.sessions, connectionID)
	m.mu.Unlock()

	// Stops any poll for this connection even when no session entry remains
	m.poller.StopPolling(connectionID)
}

// GetSession returns a snapshot of the current session for a connection, or
// an idle snapshot when none is open.
func (m *PairingManager) GetSession(connectionID uuid.UUID) PairingSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[connectionID]; ok {
		return session.snapshot()
	}
	return PairingSession{ConnectionID: connectionID, State: SessionStateIdle}
}

// teardownLocked cancels the timers of the current session for a connection
// without removing it from the map. Callers hold m.mu.
func (m *PairingManager) teardownLocked(connectionID uuid.UUID) {
	session, ok := m.sessions[connectionID]
	if !ok {
		return
	}
	if session.expiryTimer != nil {
		session.expiryTimer.Stop()
		session.expiryTimer = nil
	}
	// Bump gen so late fires and in-flight results are discarded
	session.gen = 0
	m.poller.StopPolling(connectionID)
}

// expire transitions an active session to expired once the validity window
// elapses without a success signal.
func (m *PairingManager) expire(connectionID uuid.UUID, gen uint64) {
	m.mu.Lock()
	session, ok := m.sessions[connectionID]
	if !ok || session.gen != gen || session.state != SessionStateActive {
		m.mu.Unlock()
		return
	}
	session.state = SessionStateExpired
	session.qrCode = ""
	m.mu.Unlock()

	m.poller.StopPolling(connectionID)
	log.Info().Str("connection_id", connectionID.String()).Msg("Pairing QR code expired")
}

// handlePaired consumes the poller's success signal: the session becomes
// paired, the pending expiry is cancelled, and the connection record is
// updated with the authoritative status and phone number.
func (m *PairingManager) handlePaired(connectionID uuid.UUID, gen uint64, phoneNumber *string) {
	m.mu.Lock()
	session, ok := m.sessions[connectionID]
	if !ok || session.gen != gen || session.state != SessionStateActive {
		m.mu.Unlock()
		return
	}
	session.state = SessionStatePaired
	session.qrCode = ""
	if session.expiryTimer != nil {
		session.expiryTimer.Stop()
		session.expiryTimer = nil
	}
	m.mu.Unlock()

	if err := m.connections.UpdateStatusAndPhone(connectionID, models.ConnectionStatusConnected, phoneNumber); err != nil {
		log.Error().Err(err).Str("connection_id", connectionID.String()).
			Msg("Failed to persist paired connection status")
	}
	log.Info().Str("connection_id", connectionID.String()).Msg("Connection paired")
}

// handlePollFailure marks the session as errored after the poller gives up
func (m *PairingManager) handlePollFailure(connectionID uuid.UUID, gen uint64, err error) {
	m.mu.Lock()
	session, ok := m.sessions[connectionID]
	if !ok || session.gen != gen || session.state != SessionStateActive {
		m.mu.Unlock()
		return
	}
	session.state = SessionStateError
	if session.expiryTimer != nil {
		session.expiryTimer.Stop()
		session.expiryTimer = nil
	}
	m.mu.Unlock()

	log.Warn().Err(err).Str("connection_id", connectionID.String()).
		Msg("Pairing session errored after repeated gateway failures")
}

func (s *pairingSession) snapshot() PairingSession {
	return PairingSession{
		ConnectionID: s.connectionID,
		State:        s.state,
		QRCode:       s.qrCode,
		IssuedAt:     s.issuedAt,
		ExpiresAt:    s.expiresAt,
	}
}
