//go:build linux

// Package serial implements a real UART SerialRx/SerialTx backend over
// termios, grounded on the reference implementation's TermiosRawPort:
// the port is switched into raw mode, VMIN/VTIME are reprogrammed to
// approximate each requested read timeout, and writes retry until the
// deadline or full completion.
package serial

import (
	"errors"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Parity selects the UART parity mode.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

var baudRates = map[int]uint32{
	50:      unix.B50,
	75:      unix.B75,
	110:     unix.B110,
	134:     unix.B134,
	150:     unix.B150,
	200:     unix.B200,
	300:     unix.B300,
	600:     unix.B600,
	1200:    unix.B1200,
	1800:    unix.B1800,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	921600:  unix.B921600,
	1000000: unix.B1000000,
}

// ErrUnsupportedBaudRate is returned by Open when the requested baud
// rate has no POSIX termios constant.
var ErrUnsupportedBaudRate = errors.New("serial: unsupported baud rate")

// Port is a UART opened in raw mode via termios, implementing the
// transport.SerialRx/SerialTx contract over a real device file.
type Port struct {
	file          *os.File
	fd            int
	lastReadTenth uint32
}

// Open opens device (e.g. "/dev/ttyUSB0") at the given baud rate and
// parity, puts it into raw mode, and returns a ready-to-use Port.
func Open(device string, baud int, parity Parity) (*Port, error) {
	f, err := os.OpenFile(device, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, err
	}

	fd := int(f.Fd())
	term, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		f.Close()
		return nil, err
	}

	makeRaw(term)

	speed, ok := baudRates[baud]
	if !ok {
		f.Close()
		return nil, ErrUnsupportedBaudRate
	}
	setSpeed(term, speed)
	applyParity(term, parity)

	// Blocking read, one byte at a time, by default; Read reprograms
	// VMIN/VTIME per call to approximate the requested timeout.
	term.Cc[unix.VMIN] = 1
	term.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, term); err != nil {
		f.Close()
		return nil, err
	}

	return &Port{file: f, fd: fd}, nil
}

// Close releases the underlying file descriptor.
func (p *Port) Close() error { return p.file.Close() }

// Read attempts a single read of up to len(dst) bytes, reprogramming the
// termios VMIN/VTIME pair to approximate timeout. Returns 0, nil on
// timeout (spec.md §6's SerialRx contract).
func (p *Port) Read(dst []byte, timeout time.Duration) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if err := p.applyReadTimeout(timeout); err != nil {
		return 0, err
	}
	n, err := p.file.Read(dst)
	if err != nil {
		// A read that ends on VTIME with no bytes reaches us from
		// os.File as io.EOF.
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// Write attempts to fully write src, retrying until the deadline.
func (p *Port) Write(src []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	total := 0
	for total < len(src) {
		n, err := p.file.Write(src[total:])
		if n > 0 {
			total += n
		}
		if err != nil {
			return total, err
		}
		if n == 0 && timeout > 0 && time.Now().After(deadline) {
			break
		}
	}
	return total, nil
}

// applyReadTimeout reprograms VMIN/VTIME to realize timeout as closely as
// termios allows: VTIME counts in deciseconds, and VMIN=0 makes the read
// return as soon as any bytes (or none, after VTIME elapses) are
// available.
func (p *Port) applyReadTimeout(timeout time.Duration) error {
	tenths, vmin, vtime := readTimeoutToVMinVTime(timeout)
	if tenths == p.lastReadTenth && p.lastReadTenth != 0 {
		return nil
	}

	term, err := unix.IoctlGetTermios(p.fd, ioctlGetTermios)
	if err != nil {
		return err
	}
	term.Cc[unix.VMIN] = vmin
	term.Cc[unix.VTIME] = vtime
	p.lastReadTenth = tenths
	return unix.IoctlSetTermios(p.fd, ioctlSetTermios, term)
}

// readTimeoutToVMinVTime converts a read timeout into the termios
// VMIN/VTIME pair that realizes it as closely as the driver allows.
// VTIME counts in deciseconds and saturates at 255 (25.5s); timeouts
// beyond that fall back to an indefinite blocking read (VMIN=1,
// VTIME=0), matching the reference implementation's behaviour for
// timeouts exceeding what a single termios field can represent.
func readTimeoutToVMinVTime(timeout time.Duration) (tenths uint32, vmin, vtime uint8) {
	tenths = uint32(timeout / (100 * time.Millisecond))
	switch {
	case timeout <= 0:
		return 0, 0, 0
	case tenths == 0:
		// Sub-decisecond timeouts round up to the smallest representable
		// termios timeout rather than blocking indefinitely.
		return tenths, 0, 1
	case tenths > 255:
		return tenths, 1, 0
	default:
		return tenths, 0, uint8(tenths)
	}
}

func applyParity(term *unix.Termios, parity Parity) {
	switch parity {
	case ParityOdd:
		term.Cflag |= unix.PARENB | unix.PARODD
		term.Iflag |= unix.INPCK | unix.IGNPAR
	case ParityEven:
		term.Cflag |= unix.PARENB
		term.Cflag &^= unix.PARODD
		term.Iflag |= unix.INPCK | unix.IGNPAR
	default:
		term.Cflag &^= unix.PARENB
		term.Iflag &^= unix.INPCK
	}
}
