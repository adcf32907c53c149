// noop.go - No-op collector for components running without prometheus.

package metrics

import "time"

type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (nc *NoopCollector) Deposit(uint64)                {}
func (nc *NoopCollector) Movement(string, int, uint64)  {}
func (nc *NoopCollector) Failure(string, string)        {}
func (nc *NoopCollector) Verification(bool)             {}
func (nc *NoopCollector) VerificationFailure(string)    {}
func (nc *NoopCollector) ReadCacheHit()                 {}
func (nc *NoopCollector) Settlement(int, time.Duration) {}
func (nc *NoopCollector) Rejection(string)              {}
func (nc *NoopCollector) VaultMovement(string, uint64)  {}
