package input

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultDeviceDir holds the evdev nodes.
const DefaultDeviceDir = "/dev/input"

// DefaultDevicePatterns match common USB barcode scanners, in priority order.
var DefaultDevicePatterns = []string{"barcode", "scanner", "henex"}

// ErrNoDevice is returned by FindDevice when no device name matches.
var ErrNoDevice = errors.New("no matching input device")

const (
	eviocgrab  = 0x40044590
	maxNameLen = 256
	readBatch  = 64
)

// eviocgname is _IOC(_IOC_READ, 'E', 0x06, n).
func eviocgname(n uintptr) uintptr {
	return 2<<30 | n<<16 | uintptr('E')<<8 | 0x06
}

// struct input_event is a timeval followed by type, code and value.
var (
	timevalSize = int(unsafe.Sizeof(unix.Timeval{}))
	eventSize   = timevalSize + 8
)

// Device is an open evdev node. It implements EventStream.
type Device struct {
	f       *os.File
	path    string
	name    string
	grabbed bool
	buf     []byte
}

// OpenDevice opens the evdev node at path. With grab set, the device is
// taken exclusively so its keystrokes do not reach other consumers such as
// the console.
func OpenDevice(path string, grab bool) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input device %s: %w", path, err)
	}

	d := &Device{
		f:    f,
		path: path,
		buf:  make([]byte, eventSize*readBatch),
	}

	name, err := d.readName()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read name of %s: %w", path, err)
	}
	d.name = name

	if grab {
		err := d.control(func(fd uintptr) error {
			return unix.IoctlSetInt(int(fd), eviocgrab, 1)
		})
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to grab input device %s: %w", path, err)
		}
		d.grabbed = true
	}

	return d, nil
}

// Name returns the device name reported by the kernel.
func (d *Device) Name() string {
	return d.name
}

// Path returns the device node path.
func (d *Device) Path() string {
	return d.path
}

// ReadEvents blocks until at least one event is available.
func (d *Device) ReadEvents() ([]Event, error) {
	n, err := d.f.Read(d.buf)
	if err != nil {
		return nil, err
	}
	return decodeEvents(d.buf[:n]), nil
}

// Close releases the grab and closes the node, unblocking ReadEvents.
func (d *Device) Close() error {
	if d.grabbed {
		_ = d.control(func(fd uintptr) error {
			return unix.IoctlSetInt(int(fd), eviocgrab, 0)
		})
		d.grabbed = false
	}
	return d.f.Close()
}

func (d *Device) control(fn func(fd uintptr) error) error {
	rc, err := d.f.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	if err := rc.Control(func(fd uintptr) { opErr = fn(fd) }); err != nil {
		return err
	}
	return opErr
}

func (d *Device) readName() (string, error) {
	buf := make([]byte, maxNameLen)
	err := d.control(func(fd uintptr) error {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, eviocgname(maxNameLen), uintptr(unsafe.Pointer(&buf[0])))
		if errno != 0 {
			return errno
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), nil
}

func decodeEvents(b []byte) []Event {
	events := make([]Event, 0, len(b)/eventSize)
	for off := 0; off+eventSize <= len(b); off += eventSize {
		p := b[off+timevalSize : off+eventSize]
		events = append(events, Event{
			Type:  binary.NativeEndian.Uint16(p[0:2]),
			Code:  binary.NativeEndian.Uint16(p[2:4]),
			Value: int32(binary.NativeEndian.Uint32(p[4:8])),
		})
	}
	return events
}

// FindDevice returns the first evdev node under dir whose name contains one
// of patterns (case-insensitive). Patterns are tried in order and nodes are
// visited sorted by path, so the choice is deterministic.
func FindDevice(dir string, patterns []string) (string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "event*"))
	if err != nil {
		return "", fmt.Errorf("failed to list input devices: %w", err)
	}
	return findDevice(paths, patterns, deviceName)
}

func deviceName(path string) (string, error) {
	d, err := OpenDevice(path, false)
	if err != nil {
		return "", err
	}
	defer d.Close()
	return d.Name(), nil
}

func findDevice(paths, patterns []string, nameOf func(string) (string, error)) (string, error) {
	sort.Strings(paths)

	names := make(map[string]string, len(paths))
	for _, p := range paths {
		name, err := nameOf(p)
		if err != nil {
			continue
		}
		names[p] = strings.ToLower(name)
	}

	for _, pattern := range patterns {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		for _, p := range paths {
			name, ok := names[p]
			if ok && strings.Contains(name, pattern) {
				return p, nil
			}
		}
	}

	return "", ErrNoDevice
}
