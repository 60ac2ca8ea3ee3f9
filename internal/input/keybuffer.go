package input

// Linux input event types and key values.
const (
	EvKey uint16 = 0x01

	KeyReleased int32 = 0
	KeyPressed  int32 = 1
	KeyRepeated int32 = 2
)

// Key codes from linux/input-event-codes.h.
const (
	Key1       uint16 = 2
	Key9       uint16 = 10
	Key0       uint16 = 11
	KeyEnter   uint16 = 28
	KeyKP7     uint16 = 71
	KeyKP8     uint16 = 72
	KeyKP9     uint16 = 73
	KeyKP4     uint16 = 75
	KeyKP5     uint16 = 76
	KeyKP6     uint16 = 77
	KeyKP1     uint16 = 79
	KeyKP2     uint16 = 80
	KeyKP3     uint16 = 81
	KeyKP0     uint16 = 82
	KeyKPEnter uint16 = 96
)

var keypadDigits = map[uint16]byte{
	KeyKP0: '0', KeyKP1: '1', KeyKP2: '2', KeyKP3: '3', KeyKP4: '4',
	KeyKP5: '5', KeyKP6: '6', KeyKP7: '7', KeyKP8: '8', KeyKP9: '9',
}

// maxBuffered bounds the digits kept between two enters.
const maxBuffered = 64

// Event is one decoded input event.
type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

// KeyBuffer assembles key-down events into submissions. Digits are
// appended, enter completes the submission and everything else is ignored.
type KeyBuffer struct {
	buf []byte
}

// Feed applies one event and returns a completed submission, if any. An
// enter on an empty buffer completes nothing.
func (b *KeyBuffer) Feed(ev Event) (string, bool) {
	if ev.Type != EvKey || ev.Value != KeyPressed {
		return "", false
	}

	if d, ok := digitFor(ev.Code); ok {
		if len(b.buf) < maxBuffered {
			b.buf = append(b.buf, d)
		}
		return "", false
	}

	if ev.Code == KeyEnter || ev.Code == KeyKPEnter {
		if len(b.buf) == 0 {
			return "", false
		}
		out := string(b.buf)
		b.buf = b.buf[:0]
		return out, true
	}

	return "", false
}

// Pending returns the digits accumulated so far.
func (b *KeyBuffer) Pending() string {
	return string(b.buf)
}

// Reset drops any accumulated digits.
func (b *KeyBuffer) Reset() {
	b.buf = b.buf[:0]
}

func digitFor(keyCode uint16) (byte, bool) {
	switch {
	case keyCode >= Key1 && keyCode <= Key9:
		return byte('1' + keyCode - Key1), true
	case keyCode == Key0:
		return '0', true
	}
	d, ok := keypadDigits[keyCode]
	return d, ok
}
