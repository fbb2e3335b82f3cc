//go:build linux

/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * Portions are derived from of Linux's tcp.h, used under the syscall exception
 * (see https://spdx.org/licenses/Linux-syscall-note.html).
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

package sockhealth

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"github.com/docker/docker/pkg/parsers/kernel"
)

// rawTCPInfo mirrors the front of Linux's struct tcp_info — only as far as
// the fields Snapshot surfaces, which have been stable since tcp_info's
// introduction (kernel 2.6.2).
type rawTCPInfo struct {
	state       uint8
	caState     uint8
	retransmits uint8
	probes      uint8
	backoff     uint8
	options     uint8
	bitfield0   uint8
	bitfield1   uint8
	rto         uint32
	ato         uint32
	sndMSS      uint32
	rcvMSS      uint32
	unacked     uint32
	sacked      uint32
	lost        uint32
	retrans     uint32
	fackets     uint32
	lastDataSent uint32
	lastAckSent  uint32
	lastDataRecv uint32
	lastAckRecv  uint32
	pmtu         uint32
	rcvSSThresh  uint32
	rtt          uint32
	rttvar       uint32
	sndSSThresh  uint32
	sndCWnd      uint32
}

const sizeOfRawTCPInfo = int(unsafe.Sizeof(rawTCPInfo{}))

var errKernelTooOld = errors.New("sockhealth: tcp_info is not available on Linux prior to kernel 2.6.2")

var minKernelOK bool

func init() {
	v, err := kernel.GetKernelVersion()
	if err != nil {
		// No working uname(2): treat every Snapshot call as unsupported
		// rather than panicking the whole process over a debug feature.
		return
	}
	minKernelOK = kernel.CompareKernelVersion(*v, kernel.VersionInfo{Kernel: 2, Major: 6, Minor: 2}) >= 0
}

// getTCPInfo calls getsockopt(2) for TCP_INFO on fd and trims the result to
// a Snapshot.
func getTCPInfo(fd int) (Snapshot, error) {
	if !minKernelOK {
		return Snapshot{}, errKernelTooOld
	}

	var raw rawTCPInfo
	length := uint32(sizeOfRawTCPInfo)

	_, _, errno := syscall.Syscall6(
		syscall.SYS_GETSOCKOPT,
		uintptr(fd),
		uintptr(syscall.SOL_TCP),
		uintptr(syscall.TCP_INFO),
		uintptr(unsafe.Pointer(&raw)),
		uintptr(unsafe.Pointer(&length)),
		0,
	)
	if errno != 0 {
		return Snapshot{}, fmt.Errorf("sockhealth: getsockopt(TCP_INFO): %w", errno)
	}

	return Snapshot{
		State:            raw.state,
		Retransmits:      raw.retransmits,
		RTTMicros:        raw.rtt,
		RTTVarMicros:     raw.rttvar,
		CongestionWindow: raw.sndCWnd,
		SendMSS:          raw.sndMSS,
	}, nil
}
