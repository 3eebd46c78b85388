// Copyright (c) 2024 The Gandercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpctest

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
)

var (
	// portRangeStart and portRangeEnd bound the ports handed out to
	// harness nodes, both inclusive.
	portRangeStart = 30000
	portRangeEnd   = 40000

	// portLockDir holds one lock file per reserved port, shared by every
	// test process on the host.
	portLockDir = filepath.Join(os.TempDir(), "chainfixture_port_locks")
)

// ReservePort returns a free local port that no other harness on the host
// has reserved.  The reservation is held until ReleasePort.
func ReservePort() (int, error) {
	if err := os.MkdirAll(portLockDir, 0755); err != nil {
		return 0, err
	}

	for port := portRangeStart; port <= portRangeEnd; port++ {
		lockFile := portLockFile(port)
		f, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL, 0600)
		if err != nil {
			continue
		}
		f.Close()

		// The port is ours but something outside the harness may be
		// bound to it.
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			os.Remove(lockFile)
			continue
		}
		l.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no available ports in range %d-%d",
		portRangeStart, portRangeEnd)
}

// ReleasePort drops the reservation of a port returned by ReservePort.
func ReleasePort(port int) error {
	return os.Remove(portLockFile(port))
}

func portLockFile(port int) string {
	return filepath.Join(portLockDir, fmt.Sprintf("port_%d.lock", port))
}
