package netinfo

import (
	"fmt"
	"os"

	"github.com/grandcat/zeroconf"

	"github.com/codefionn/liveshare/internal/logger"
)

const mdnsService = "_liveshare._tcp"

// Announcer advertises a running session over mDNS so peers on the same LAN
// can spot it without being handed a link.
type Announcer struct {
	server *zeroconf.Server
}

// Announce registers the session on the local network. The announcement is
// best-effort; hosting works the same without it.
func Announce(sessionID string, port int) (*Announcer, error) {
	host, _ := os.Hostname()
	instance := fmt.Sprintf("liveshare-%s-%s", sessionID, host)

	server, err := zeroconf.Register(instance, mdnsService, "local.", port, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logger.Info("mDNS service registered: %s on port %d", instance, port)
	return &Announcer{server: server}, nil
}

// Shutdown withdraws the announcement. Safe to call on a nil Announcer.
func (a *Announcer) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	logger.Debug("mDNS service withdrawn")
}
