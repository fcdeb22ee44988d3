package cul

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frame layout constants. The receiver emits one ASCII line per telegram:
//
//	Byte 0:     protocol marker (e.g. 'F')
//	Byte 1-8:   house code (4 hex) + device address (2 hex) + command (2 hex)
//	Byte 9-10:  RSSI (2 hex)
//	Byte 11-12: "\r\n"
//
// The marker and the last four bytes (RSSI + terminator) are discarded before
// the digit remap. RSSI is read from the original, un-remapped frame.
const (
	// markerLen is the number of leading protocol marker bytes.
	markerLen = 1

	// trailerLen is the number of trailing RSSI/terminator bytes.
	trailerLen = 4

	// rssiOffset is the index of the RSSI byte pair in the raw frame.
	rssiOffset = 9

	// rssiLen is the number of hex characters carrying the RSSI.
	rssiLen = 2

	// rssiOffsetDBm is subtracted from the raw RSSI byte after the
	// two's-complement shift.
	rssiOffsetDBm = 74

	// houseCodeEnd, deviceAddressEnd and stateCodeEnd slice the remapped
	// digit string.
	houseCodeEnd     = 8
	deviceAddressEnd = 12
	stateCodeEnd     = 16

	// minRemappedLen is the shortest remapped string DecodeTelegram accepts.
	minRemappedLen = stateCodeEnd
)

// State is the semantic state carried by a telegram.
type State string

// Known telegram states.
const (
	StateOff State = "OFF"
	StateOn  State = "ON"
)

// knownStates maps remapped state codes to their semantic state.
// Any code outside this table is a decode failure, never a default.
var knownStates = map[string]State{
	"1111": StateOff,
	"1212": StateOn,
}

// stateCodes is the inverse of knownStates.
var stateCodes = func() map[State]string {
	m := make(map[State]string, len(knownStates))
	for code, state := range knownStates {
		m[state] = code
	}
	return m
}()

// StateForCode returns the state for a remapped 4-digit state code.
func StateForCode(code string) (State, bool) {
	s, ok := knownStates[code]
	return s, ok
}

// CodeForState returns the remapped 4-digit code for a state.
func CodeForState(state State) (string, bool) {
	c, ok := stateCodes[state]
	return c, ok
}

// Telegram is one decoded RF transmission.
type Telegram struct {
	// HouseCode identifies the transmitter set (8 ELV digits).
	HouseCode string `json:"housecode"`

	// DeviceAddress identifies the device within the house code (4 ELV digits).
	DeviceAddress string `json:"deviceaddress"`

	// StateCode is the raw remapped state slice (4 ELV digits).
	StateCode string `json:"statecode"`

	// State is the semantic state for StateCode.
	State State `json:"state"`

	// RSSI is the received signal strength in dBm.
	RSSI int `json:"rssi"`

	// Timestamp records when the frame was decoded.
	Timestamp time.Time `json:"timestamp"`
}

// String returns a human-readable representation of the telegram.
func (t Telegram) String() string {
	return fmt.Sprintf("Telegram{House:%s, Device:%s, State:%s, RSSI:%d}",
		t.HouseCode, t.DeviceAddress, t.State, t.RSSI)
}

// RemapDigits converts every hex digit of frame into the receiver's base-4
// notation. Each digit d becomes two decimal characters: (d/4)%4+1 followed
// by d%4+1, both in the range 1..4.
//
// Example: "0" → "11", "5" → "22", "F" → "44".
func RemapDigits(frame string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(frame) * 2) //nolint:mnd // two output digits per input digit

	for i := 0; i < len(frame); i++ {
		d, ok := hexValue(frame[i])
		if !ok {
			return "", fmt.Errorf("%w: %q at index %d", ErrInvalidDigit, frame[i], i)
		}
		sb.WriteByte('1' + (d/4)%4) //nolint:mnd // base-4 high digit
		sb.WriteByte('1' + d%4)     //nolint:mnd // base-4 low digit
	}

	return sb.String(), nil
}

// ExtractRSSI reads the RSSI byte pair from the raw (pre-remap) frame and
// converts it to dBm as value - 256 - 74.
func ExtractRSSI(frame string) (int, error) {
	if len(frame) < rssiOffset+rssiLen {
		return 0, fmt.Errorf("%w: %d characters, need at least %d for RSSI",
			ErrFrameTooShort, len(frame), rssiOffset+rssiLen)
	}

	raw := frame[rssiOffset : rssiOffset+rssiLen]
	v, err := strconv.ParseUint(raw, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: RSSI %q", ErrInvalidDigit, raw)
	}

	return int(v) - 256 - rssiOffsetDBm, nil //nolint:mnd // two's-complement shift
}

// DecodeTelegram slices a remapped digit string into house code, device
// address and state. The returned telegram has no RSSI or timestamp.
func DecodeTelegram(remapped string) (Telegram, error) {
	if len(remapped) < minRemappedLen {
		return Telegram{}, fmt.Errorf("%w: %d remapped digits, need at least %d",
			ErrFrameTooShort, len(remapped), minRemappedLen)
	}

	code := remapped[deviceAddressEnd:stateCodeEnd]
	state, ok := StateForCode(code)
	if !ok {
		return Telegram{}, fmt.Errorf("%w: %q", ErrUnknownStateCode, code)
	}

	return Telegram{
		HouseCode:     remapped[0:houseCodeEnd],
		DeviceAddress: remapped[houseCodeEnd:deviceAddressEnd],
		StateCode:     code,
		State:         state,
	}, nil
}

// ParseFrame decodes one complete raw frame as received from the stick,
// including marker and trailing RSSI/terminator bytes.
func ParseFrame(raw string) (Telegram, error) {
	if len(raw) < markerLen+trailerLen {
		return Telegram{}, fmt.Errorf("%w: %d characters", ErrFrameTooShort, len(raw))
	}

	remapped, err := RemapDigits(raw[markerLen : len(raw)-trailerLen])
	if err != nil {
		return Telegram{}, err
	}

	t, err := DecodeTelegram(remapped)
	if err != nil {
		return Telegram{}, err
	}

	rssi, err := ExtractRSSI(raw)
	if err != nil {
		return Telegram{}, err
	}

	t.RSSI = rssi
	t.Timestamp = time.Now()
	return t, nil
}

// hexValue returns the numeric value of an ASCII hex digit.
func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true //nolint:mnd // hex letter offset
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true //nolint:mnd // hex letter offset
	default:
		return 0, false
	}
}
