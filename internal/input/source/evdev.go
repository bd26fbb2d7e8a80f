package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dshills/keychord/internal/input/key"
)

// Linux input_event layout on 64-bit platforms:
// struct timeval (2x int64), __u16 type, __u16 code, __s32 value.
const (
	evdevEventSize = 24

	evKey = 0x01
)

// Evdev reads key events from a Linux input device such as
// /dev/input/event3. Non-key events (EV_SYN, EV_MSC, ...) are skipped.
type Evdev struct {
	name string
	r    io.ReadCloser
	buf  [evdevEventSize]byte
}

// OpenEvdev opens the device at path for reading.
func OpenEvdev(path string) (*Evdev, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open evdev: %w", err)
	}
	return NewEvdev(path, f), nil
}

// NewEvdev reads input_event records from r.
func NewEvdev(name string, r io.ReadCloser) *Evdev {
	return &Evdev{name: name, r: r}
}

// Name returns the device path.
func (e *Evdev) Name() string {
	return "evdev:" + e.name
}

// Next returns the next EV_KEY event.
func (e *Evdev) Next() (key.Event, error) {
	for {
		if _, err := io.ReadFull(e.r, e.buf[:]); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrClosed) {
				return key.Event{}, io.EOF
			}
			return key.Event{}, err
		}

		ev, ok := decodeEvdev(e.buf[:])
		if ok {
			return ev, nil
		}
	}
}

// Close closes the device.
func (e *Evdev) Close() error {
	return e.r.Close()
}

func decodeEvdev(b []byte) (key.Event, bool) {
	typ := binary.NativeEndian.Uint16(b[16:18])
	if typ != evKey {
		return key.Event{}, false
	}

	var state key.State
	switch int32(binary.NativeEndian.Uint32(b[20:24])) {
	case 0:
		state = key.StateRelease
	case 1:
		state = key.StatePress
	case 2:
		state = key.StateRepeat
	default:
		return key.Event{}, false
	}

	sec := int64(binary.NativeEndian.Uint64(b[0:8]))
	usec := int64(binary.NativeEndian.Uint64(b[8:16]))
	return key.Event{
		Code:      key.Code(binary.NativeEndian.Uint16(b[18:20])),
		State:     state,
		Timestamp: time.Unix(sec, usec*int64(time.Microsecond)),
	}, true
}
