package netinfo

import (
	"fmt"
	"net"
)

// LocalIPv4s enumerates the non-loopback IPv4 addresses of this machine's
// interfaces that are up. No reachability check is performed; an address may
// still be unroutable for a given peer.
func LocalIPv4s() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate interfaces: %w", err)
	}

	var ips []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if ip4 := ip.To4(); ip4 != nil {
				ips = append(ips, ip4.String())
			}
		}
	}
	return ips, nil
}

// ShareLink renders the connection string shown to the user.
func ShareLink(addr string, port int) string {
	return fmt.Sprintf("ws://%s:%d", addr, port)
}
