package cul

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRemapDigits(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"zero", "0", "11"},
		{"five", "5", "22"},
		{"fifteen", "F", "44"},
		{"lowercase", "f", "44"},
		{"all digits", "0123456789ABCDEF", "11121314212223243132333441424344"},
		{"empty", "", ""},
		{"house code", "1234", "12131421"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RemapDigits(tt.input)
			if err != nil {
				t.Fatalf("RemapDigits(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("RemapDigits(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRemapDigits_OutputRange(t *testing.T) {
	got, err := RemapDigits("0123456789abcdefABCDEF")
	if err != nil {
		t.Fatalf("RemapDigits() error = %v", err)
	}
	if len(got) != 44 {
		t.Errorf("len = %d, want 44", len(got))
	}
	for i := 0; i < len(got); i++ {
		if got[i] < '1' || got[i] > '4' {
			t.Fatalf("output %q has digit %q outside 1-4", got, got[i])
		}
	}
}

func TestRemapDigits_InvalidDigit(t *testing.T) {
	for _, input := range []string{"G", "12X4", " 1", "\r"} {
		t.Run(input, func(t *testing.T) {
			_, err := RemapDigits(input)
			if !errors.Is(err, ErrInvalidDigit) {
				t.Errorf("RemapDigits(%q) error = %v, want ErrInvalidDigit", input, err)
			}
		})
	}
}

func TestExtractRSSI(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    int
		wantErr error
	}{
		{"0x4A", "F000000004A", -256, nil},
		{"0xA2", "F12340011A2\r\n", -168, nil},
		{"0xFF", "F12345622FF\r\n", -75, nil},
		{"0x00", "F1234561100\r\n", -330, nil},
		{"exactly 11 chars", "F000000004A", -256, nil},
		{"10 chars", "F000000004", 0, ErrFrameTooShort},
		{"non-hex", "F00000000ZZ", 0, ErrInvalidDigit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractRSSI(tt.frame)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ExtractRSSI(%q) error = %v, want %v", tt.frame, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractRSSI(%q) error = %v", tt.frame, err)
			}
			if got != tt.want {
				t.Errorf("ExtractRSSI(%q) = %d, want %d", tt.frame, got, tt.want)
			}
		})
	}
}

func TestDecodeTelegram(t *testing.T) {
	tests := []struct {
		name      string
		remapped  string
		wantHouse string
		wantAddr  string
		wantState State
		wantErr   error
	}{
		{"off", "1111111111111111", "11111111", "1111", StateOff, nil},
		{"on", "1213142111111212", "12131421", "1111", StateOn, nil},
		{"extra digits ignored", "121314212223121244", "12131421", "2223", StateOn, nil},
		{"unknown code", "1213142111119999", "", "", "", ErrUnknownStateCode},
		{"unknown code 3232", "1213142111113232", "", "", "", ErrUnknownStateCode},
		{"too short", "121314211111121", "", "", "", ErrFrameTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTelegram(tt.remapped)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("DecodeTelegram(%q) error = %v, want %v", tt.remapped, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeTelegram(%q) error = %v", tt.remapped, err)
			}
			if got.HouseCode != tt.wantHouse {
				t.Errorf("HouseCode = %q, want %q", got.HouseCode, tt.wantHouse)
			}
			if got.DeviceAddress != tt.wantAddr {
				t.Errorf("DeviceAddress = %q, want %q", got.DeviceAddress, tt.wantAddr)
			}
			if got.State != tt.wantState {
				t.Errorf("State = %q, want %q", got.State, tt.wantState)
			}
		})
	}
}

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name      string
		frame     string
		wantHouse string
		wantAddr  string
		wantState State
		wantRSSI  int
	}{
		{"all zero off", "F000000004A\r\n", "11111111", "1111", StateOff, -256},
		{"doorbell on", "F12340011A2\r\n", "12131421", "1111", StateOn, -168},
		{"doorbell off", "F12340000A2\r\n", "12131421", "1111", StateOff, -168},
		{"other device on", "F1234561100\r\n", "12131421", "2223", StateOn, -330},
		{"lowercase hex", "F12340011a2\r\n", "12131421", "1111", StateOn, -168},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := time.Now()
			got, err := ParseFrame(tt.frame)
			if err != nil {
				t.Fatalf("ParseFrame(%q) error = %v", tt.frame, err)
			}
			if got.HouseCode != tt.wantHouse {
				t.Errorf("HouseCode = %q, want %q", got.HouseCode, tt.wantHouse)
			}
			if got.DeviceAddress != tt.wantAddr {
				t.Errorf("DeviceAddress = %q, want %q", got.DeviceAddress, tt.wantAddr)
			}
			if got.State != tt.wantState {
				t.Errorf("State = %q, want %q", got.State, tt.wantState)
			}
			if got.RSSI != tt.wantRSSI {
				t.Errorf("RSSI = %d, want %d", got.RSSI, tt.wantRSSI)
			}
			if got.Timestamp.Before(before) {
				t.Errorf("Timestamp %v not set", got.Timestamp)
			}
		})
	}
}

func TestParseFrame_Errors(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr error
	}{
		{"empty", "", ErrFrameTooShort},
		{"marker only", "F\r\n", ErrFrameTooShort},
		{"short payload", "F1234A2\r\n", ErrFrameTooShort},
		{"non-hex payload", "F1234G011A2\r\n", ErrInvalidDigit},
		{"unknown state", "F12340099A2\r\n", ErrUnknownStateCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrame(tt.frame)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseFrame(%q) error = %v, want %v", tt.frame, err, tt.wantErr)
			}
		})
	}
}

func TestStateCodesRoundTrip(t *testing.T) {
	for code, state := range knownStates {
		gotCode, ok := CodeForState(state)
		if !ok || gotCode != code {
			t.Errorf("CodeForState(%q) = %q, %v; want %q", state, gotCode, ok, code)
		}
		gotState, ok := StateForCode(code)
		if !ok || gotState != state {
			t.Errorf("StateForCode(%q) = %q, %v; want %q", code, gotState, ok, state)
		}
	}

	if _, ok := StateForCode("9999"); ok {
		t.Error("StateForCode(9999) should not be known")
	}
	if _, ok := CodeForState("DIMMED"); ok {
		t.Error("CodeForState(DIMMED) should not be known")
	}
}

func TestTelegramString(t *testing.T) {
	tg := Telegram{HouseCode: "12131421", DeviceAddress: "1111", State: StateOn, RSSI: -168}
	s := tg.String()
	for _, want := range []string{"12131421", "1111", "ON", "-168"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}
