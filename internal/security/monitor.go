package security

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Alert severities.
const (
	SeverityHigh   = "HIGH"
	SeverityMedium = "MEDIUM"
)

// Alerter delivers security alerts to an operator channel.
type Alerter interface {
	SendAlert(ctx context.Context, severity, title, message string) error
}

// LogAlerter "delivers" alerts by writing them as critical log lines. It is the
// only alerter the server wires; mail or chat delivery would implement Alerter.
type LogAlerter struct {
	logger *Logger
}

// NewLogAlerter returns an Alerter backed by logger.
func NewLogAlerter(logger *Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

// SendAlert logs the alert.
func (a *LogAlerter) SendAlert(_ context.Context, severity, title, message string) error {
	a.logger.Critical(fmt.Sprintf("[%s] %s: %s", severity, title, message), nil)
	return nil
}

// SecurityMonitor counts suspicious activity and raises alerts when thresholds
// are crossed. Counters reset every MonitoringInterval.
type SecurityMonitor struct {
	logger  *Logger
	config  *SecurityConfig
	alerter Alerter

	mu           sync.Mutex
	failedLogins map[string]int
	alerted      map[string]bool
	windowStart  time.Time
	now          func() time.Time
}

// NewSecurityMonitor creates a monitor. alerter may be nil, in which case alerts
// are only logged.
func NewSecurityMonitor(logger *Logger, config *SecurityConfig, alerter Alerter) *SecurityMonitor {
	if alerter == nil {
		alerter = NewLogAlerter(logger)
	}
	return &SecurityMonitor{
		logger:       logger,
		config:       config,
		alerter:      alerter,
		failedLogins: make(map[string]int),
		alerted:      make(map[string]bool),
		windowStart:  time.Now(),
		now:          time.Now,
	}
}

// MonitorLoginFailure counts a failed login from ipAddress and alerts once per
// window when the count reaches AlertThresholdFailures.
func (m *SecurityMonitor) MonitorLoginFailure(ipAddress string) {
	m.mu.Lock()
	m.failedLogins[ipAddress]++
	count := m.failedLogins[ipAddress]
	fire := count >= m.config.AlertThresholdFailures && !m.alerted[ipAddress]
	if fire {
		m.alerted[ipAddress] = true
	}
	m.mu.Unlock()

	if !fire {
		return
	}

	msg := fmt.Sprintf("%d failed logins from %s", count, ipAddress)
	if err := m.alerter.SendAlert(context.Background(), SeverityHigh, "Repeated login failures", msg); err != nil {
		m.logger.Error("failed to send alert", err)
	}
}

// MonitorLargeExport logs every export at or above AlertThresholdExport rows
// and alerts on it.
func (m *SecurityMonitor) MonitorLargeExport(actor string, rows int, filters map[string]string) {
	if rows < m.config.AlertThresholdExport {
		return
	}

	extra := map[string]interface{}{"rows": rows}
	for k, v := range filters {
		extra["filter_"+k] = v
	}
	m.logger.SecurityEvent(EventLargeExport, nil, actor, "", "", extra)

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + filters[k]
	}

	msg := fmt.Sprintf("%s exported %d reports (%s)", actor, rows, strings.Join(parts, ", "))
	if err := m.alerter.SendAlert(context.Background(), SeverityMedium, "Large report export", msg); err != nil {
		m.logger.Error("failed to send alert", err)
	}
}

// ResetCounters clears the counters when the monitoring window has elapsed.
// The server calls it on every login attempt; it is a no-op mid-window.
func (m *SecurityMonitor) ResetCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.windowStart) < m.config.MonitoringInterval {
		return
	}
	m.failedLogins = make(map[string]int)
	m.alerted = make(map[string]bool)
	m.windowStart = now
}
