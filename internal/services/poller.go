package services

import (
	"sync"
	"time"

	"impaai/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PollerCallbacks receives the outcomes of status polling for one connection.
// OnConnected fires once when the gateway reports the instance as connected;
// polling stops afterwards. OnStatus fires for every other observed status.
// OnGaveUp fires once when consecutive gateway failures exceed the threshold.
type PollerCallbacks struct {
	OnConnected func(connectionID uuid.UUID, phoneNumber *string)
	OnStatus    func(connectionID uuid.UUID, status string)
	OnGaveUp    func(connectionID uuid.UUID, err error)
}

// StatusPoller periodically queries the gateway for the authoritative status
// of instances under pairing and reports observations through callbacks.
type StatusPoller struct {
	gateway     PairingGateway
	maxFailures int

	mu    sync.Mutex
	tasks map[uuid.UUID]*pollTask
}

type pollTask struct {
	instanceName string
	stopChan     chan struct{}
	stopped      bool
}

// NewStatusPoller creates a new status poller. maxFailures bounds consecutive
// gateway errors before a poll is abandoned; individual failed ticks are
// treated as transient and skipped.
func NewStatusPoller(gateway PairingGateway, maxFailures int) *StatusPoller {
	if maxFailures <= 0 {
		maxFailures = 10
	}
	return &StatusPoller{
		gateway:     gateway,
		maxFailures: maxFailures,
		tasks:       make(map[uuid.UUID]*pollTask),
	}
}

// StartPolling begins a recurring status query for a connection's instance.
// A previous poll for the same connection is stopped first.
func (p *StatusPoller) StartPolling(connectionID uuid.UUID, instanceName string, interval time.Duration, callbacks PollerCallbacks) {
	p.mu.Lock()
	if existing, ok := p.tasks[connectionID]; ok && !existing.stopped {
		existing.stopped = true
		close(existing.stopChan)
	}
	task := &pollTask{
		instanceName: instanceName,
		stopChan:     make(chan struct{}),
	}
	p.tasks[connectionID] = task
	p.mu.Unlock()

	go p.run(connectionID, task, interval, callbacks)
}

// StopPolling cancels the recurring query for a connection; idempotent.
func (p *StatusPoller) StopPolling(connectionID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	task, ok := p.tasks[connectionID]
	if !ok || task.stopped {
		return
	}
	task.stopped = true
	close(task.stopChan)
	delete(p.tasks, connectionID)
}

// IsPolling reports whether a poll is currently active for a connection
func (p *StatusPoller) IsPolling(connectionID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	task, ok := p.tasks[connectionID]
	return ok && !task.stopped
}

// isCurrent reports whether a task is still the registered poll for its connection
func (p *StatusPoller) isCurrent(connectionID uuid.UUID, task *pollTask) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	current, ok := p.tasks[connectionID]
	return ok && current == task && !task.stopped
}

// stopTask stops one specific task. The map entry is removed only while it
// still points at this task, so a superseding poll is left untouched.
func (p *StatusPoller) stopTask(connectionID uuid.UUID, task *pollTask) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !task.stopped {
		task.stopped = true
		close(task.stopChan)
	}
	if current, ok := p.tasks[connectionID]; ok && current == task {
		delete(p.tasks, connectionID)
	}
}

func (p *StatusPoller) run(connectionID uuid.UUID, task *pollTask, interval time.Duration, callbacks PollerCallbacks) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	consecutiveFailures := 0

	for {
		select {
		case <-ticker.C:
			status, err := p.gateway.FetchInstanceStatus(task.instanceName)

			// A supersession while the fetch was in flight makes this result
			// stale: it must neither fire callbacks nor stop the successor.
			if !p.isCurrent(connectionID, task) {
				return
			}

			if err != nil {
				// Transient gateway errors are skipped; only a sustained run
				// of failures abandons the poll.
				consecutiveFailures++
				if consecutiveFailures >= p.maxFailures {
					log.Warn().Str("instance", task.instanceName).Int("failures", consecutiveFailures).
						Msg("Status polling abandoned after repeated gateway failures")
					p.stopTask(connectionID, task)
					if callbacks.OnGaveUp != nil {
						callbacks.OnGaveUp(connectionID, err)
					}
					return
				}
				continue
			}
			consecutiveFailures = 0

			if status.Status == models.ConnectionStatusConnected {
				p.stopTask(connectionID, task)
				if callbacks.OnConnected != nil {
					callbacks.OnConnected(connectionID, status.PhoneNumber)
				}
				return
			}
			if callbacks.OnStatus != nil {
				callbacks.OnStatus(connectionID, status.Status)
			}
		case <-task.stopChan:
			return
		}
	}
}
