package security

import "sync/atomic"

// SecurityMetrics tracks subsystem counters. All increments are atomic so
// parallel validations never lose updates.
type SecurityMetrics struct {
	totalValidations atomic.Int64
	fraudDetections  atomic.Int64
	challengesRaised atomic.Int64
	slashingEvents   atomic.Int64
}

// NewSecurityMetrics creates a zeroed metrics instance
func NewSecurityMetrics() *SecurityMetrics {
	return &SecurityMetrics{}
}

// IncrementValidations bumps the total validation counter
func (m *SecurityMetrics) IncrementValidations() {
	m.totalValidations.Add(1)
}

// IncrementFraudDetections bumps the fraud detection counter
func (m *SecurityMetrics) IncrementFraudDetections() {
	m.fraudDetections.Add(1)
}

// IncrementChallengesRaised bumps the challenge counter
func (m *SecurityMetrics) IncrementChallengesRaised() {
	m.challengesRaised.Add(1)
}

// IncrementSlashingEvents bumps the slashing counter
func (m *SecurityMetrics) IncrementSlashingEvents() {
	m.slashingEvents.Add(1)
}

// TotalValidations returns the current validation count
func (m *SecurityMetrics) TotalValidations() int64 {
	return m.totalValidations.Load()
}

// FraudDetections returns the current fraud detection count
func (m *SecurityMetrics) FraudDetections() int64 {
	return m.fraudDetections.Load()
}

// ChallengesRaised returns the current challenge count
func (m *SecurityMetrics) ChallengesRaised() int64 {
	return m.challengesRaised.Load()
}

// SlashingEvents returns the current slashing count
func (m *SecurityMetrics) SlashingEvents() int64 {
	return m.slashingEvents.Load()
}
