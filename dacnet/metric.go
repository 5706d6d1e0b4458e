package dacnet

import (
	"sync/atomic"
)

// ConnectionMetrics contains atomic metrics for one driver.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnectionMetrics struct {
	// DialCount indicates the number of TCP connections established.
	DialCount atomic.Uint64
	// CmdSendCount indicates the number of write commands acknowledged.
	CmdSendCount atomic.Uint64
	// QuerySendCount indicates the number of queries answered.
	QuerySendCount atomic.Uint64
	// CmdRejectCount indicates the number of commands the device rejected.
	CmdRejectCount atomic.Uint64
	// TimeoutCount indicates the number of reply timeouts.
	TimeoutCount atomic.Uint64
	// ProtocolErrCount indicates the number of undecodable response lines.
	ProtocolErrCount atomic.Uint64
	// HeldSessionGauge indicates whether a held session is currently active (0 or 1).
	HeldSessionGauge atomic.Int64
}

func (m *ConnectionMetrics) incDialCount() {
	m.DialCount.Add(1)
}

func (m *ConnectionMetrics) incCmdSendCount() {
	m.CmdSendCount.Add(1)
}

func (m *ConnectionMetrics) incQuerySendCount() {
	m.QuerySendCount.Add(1)
}

func (m *ConnectionMetrics) incCmdRejectCount() {
	m.CmdRejectCount.Add(1)
}

func (m *ConnectionMetrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *ConnectionMetrics) incProtocolErrCount() {
	m.ProtocolErrCount.Add(1)
}

func (m *ConnectionMetrics) incHeldSessionGauge() {
	m.HeldSessionGauge.Add(1)
}

func (m *ConnectionMetrics) decHeldSessionGauge() {
	m.HeldSessionGauge.Add(-1)
}
