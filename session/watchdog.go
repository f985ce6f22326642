package session

// Activity records a user input event. Any qualifying event while a
// session exists restarts the inactivity countdown.
func (m *Manager) Activity(a Activity) {
	if !a.qualifies() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return
	}
	m.armWatchdogLocked()
}

// armWatchdogLocked replaces any running countdown. The sequence number
// makes a timer that already fired but lost the race for the lock a no-op.
func (m *Manager) armWatchdogLocked() {
	m.disarmWatchdogLocked()
	seq := m.watchdogSeq
	m.watchdog = m.clock.AfterFunc(m.inactivity, func() {
		m.onInactive(seq)
	})
}

func (m *Manager) disarmWatchdogLocked() {
	m.watchdogSeq++
	if m.watchdog != nil {
		m.watchdog.Stop()
		m.watchdog = nil
	}
}

func (m *Manager) onInactive(seq uint64) {
	m.mu.Lock()
	if seq != m.watchdogSeq || m.current == nil {
		m.mu.Unlock()
		return
	}
	m.logger.Info().Dur("timeout", m.inactivity).Msg("Inactivity timeout, logging out")
	m.teardownLocked("inactivity")
	m.mu.Unlock()
	m.notify()
}
