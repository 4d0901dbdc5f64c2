package monitor

import (
	"log/slog"
	"net"
	"time"

	"github.com/me/workgate/internal/logging"
	"github.com/me/workgate/internal/tracker"
	"github.com/me/workgate/pkg/model"
)

// Interface is the part of a network interface the network monitor inspects.
type Interface struct {
	Name  string
	Flags net.Flags
	Addrs []net.Addr
}

// NetworkOptions configures a NetworkMonitor.
type NetworkOptions struct {
	Interval time.Duration
	// Metered and Roaming are declared by the operator; the kernel does
	// not report them.
	Metered bool
	Roaming bool
	// List enumerates interfaces. Defaults to net.Interfaces.
	List func() ([]Interface, error)
}

// NetworkMonitor reports connectivity from the host's interface table.
type NetworkMonitor struct {
	opts   NetworkOptions
	logger *slog.Logger
	p      *poller[model.NetworkState]
}

var _ tracker.Monitor[model.NetworkState] = (*NetworkMonitor)(nil)

// NewNetwork returns a NetworkMonitor.
func NewNetwork(opts NetworkOptions, logger *slog.Logger) *NetworkMonitor {
	if opts.List == nil {
		opts.List = systemInterfaces
	}
	m := &NetworkMonitor{opts: opts, logger: logging.Component(logger, "monitor").With("source", model.SourceNetwork)}
	m.p = newPoller(string(model.SourceNetwork), opts.Interval, m.probe, m.logger)
	return m
}

func (m *NetworkMonitor) Start(update func(model.NetworkState)) error { return m.p.start(update) }
func (m *NetworkMonitor) Stop()                                       { m.p.stop() }
func (m *NetworkMonitor) Snapshot() model.NetworkState                { return m.p.snapshot() }

func (m *NetworkMonitor) probe() model.NetworkState {
	ifaces, err := m.opts.List()
	if err != nil {
		m.logger.Warn("list interfaces", "error", err)
		return model.NetworkState{}
	}
	connected := false
	for _, iface := range ifaces {
		if routable(iface) {
			connected = true
			break
		}
	}
	return model.NetworkState{
		Known:     true,
		Connected: connected,
		Validated: connected,
		Metered:   connected && m.opts.Metered,
		Roaming:   connected && m.opts.Roaming,
	}
}

// routable reports whether iface is up, not loopback, and carries a
// global unicast address.
func routable(iface Interface) bool {
	if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
		return false
	}
	for _, addr := range iface.Addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		}
		if ip != nil && ip.IsGlobalUnicast() {
			return true
		}
	}
	return false
}

func systemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		out = append(out, Interface{Name: iface.Name, Flags: iface.Flags, Addrs: addrs})
	}
	return out, nil
}
