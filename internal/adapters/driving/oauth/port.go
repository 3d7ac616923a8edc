package oauth

import (
	"fmt"
	"net"
)

// FindAvailablePort returns the first loopback port in [startPort, endPort]
// that can be bound, for OAuth redirect listeners.
func FindAvailablePort(startPort, endPort int) (int, error) {
	for port := startPort; port <= endPort; port++ {
		listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port in range %d-%d", startPort, endPort)
}
