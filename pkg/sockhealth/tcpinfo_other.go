//go:build !linux

package sockhealth

import "errors"

// errUnsupported is returned on platforms without a Linux-compatible
// TCP_INFO getsockopt.
var errUnsupported = errors.New("sockhealth: TCP_INFO readout is only implemented on linux")

func getTCPInfo(fd int) (Snapshot, error) {
	return Snapshot{}, errUnsupported
}
