// Package network holds handles to the anonymity-layer collaborators. The
// bridge reads status through these seams; nothing in the current method
// set constructs them, so the handles stay nil until the transport layer
// is wired through the bridge.
package network

import "sync/atomic"

// Tor connection states as reported to the parent process.
const (
	TorConnected    = "connected"
	TorDisconnected = "disconnected"
)

// TorManager supervises the onion circuit for this profile.
type TorManager struct {
	CircuitInfo string
}

// CoverTraffic tracks the dummy-traffic scheduler's counters.
type CoverTraffic struct {
	coverSent atomic.Int64
	realSent  atomic.Int64
}

// CoverPacketsSent returns the number of cover packets emitted.
func (c *CoverTraffic) CoverPacketsSent() int64 {
	return c.coverSent.Load()
}

// RealPacketsSent returns the number of real packets emitted.
func (c *CoverTraffic) RealPacketsSent() int64 {
	return c.realSent.Load()
}

// Status is the point-in-time view reported by get_network_status.
type Status struct {
	TorStatus          string   `json:"tor_status"`
	TorCircuitInfo     *string  `json:"tor_circuit_info"`
	Relays             []string `json:"relays"`
	Mailbox            *string  `json:"mailbox"`
	CoverTrafficActive bool     `json:"cover_traffic_active"`
	CoverPacketsSent   int64    `json:"cover_packets_sent"`
	RealPacketsSent    int64    `json:"real_packets_sent"`
}

// Snapshot builds a Status from possibly-nil collaborator handles.
func Snapshot(tor *TorManager, cover *CoverTraffic) Status {
	st := Status{TorStatus: TorDisconnected, Relays: []string{}}
	if tor != nil {
		st.TorStatus = TorConnected
		if tor.CircuitInfo != "" {
			info := tor.CircuitInfo
			st.TorCircuitInfo = &info
		}
	}
	if cover != nil {
		st.CoverTrafficActive = true
		st.CoverPacketsSent = cover.CoverPacketsSent()
		st.RealPacketsSent = cover.RealPacketsSent()
	}
	return st
}
