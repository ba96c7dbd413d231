//go:build linux

package serial

import "golang.org/x/sys/unix"

const (
	ioctlGetTermios = unix.TCGETS
	ioctlSetTermios = unix.TCSETS
)

// makeRaw mirrors cfmakeraw: disable input/output processing, canonical
// mode, and signal generation so every byte is delivered untouched.
func makeRaw(term *unix.Termios) {
	term.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	term.Oflag &^= unix.OPOST
	term.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	term.Cflag &^= unix.CSIZE | unix.PARENB
	term.Cflag |= unix.CS8
}

// setSpeed programs both the input and output baud rate, clearing the
// CBAUD bits first as cfsetospeed/cfsetispeed do.
func setSpeed(term *unix.Termios, speed uint32) {
	term.Cflag &^= unix.CBAUD
	term.Cflag |= speed
	term.Ispeed = speed
	term.Ospeed = speed
}
