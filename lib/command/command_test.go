package command

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/ValentinKolb/walkv/lib/codec"
)

// allCommands returns one instance of every variant
func allCommands() []Command {
	return []Command{
		Put{Key: "testkey", Value: "testvalue"},
		Put{Key: "", Value: ""},
		Put{Key: "你好世界", Value: "line\nbreak\r\n"},
		Delete{Key: "testkey"},
		Get{Key: "testkey"},
		Range{Start: "a", End: "z"},
		Keys{Needle: "user:"},
		Values{Needle: ""},
		Amount{},
		DumpAll{},
		Shutdown{},
	}
}

// TestEncodeDecode tests that every variant survives an encode/decode round trip
func TestEncodeDecode(t *testing.T) {
	for _, cmd := range allCommands() {
		t.Run(cmd.Op().String(), func(t *testing.T) {
			data := Encode(cmd)
			if data[0] != byte(cmd.Op()) {
				t.Fatalf("first byte = %d, want opcode %d", data[0], cmd.Op())
			}

			got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode() failed: %v", err)
			}
			if !reflect.DeepEqual(got, cmd) {
				t.Errorf("Decode(Encode(%v)) = %v", cmd, got)
			}
		})
	}
}

// TestEncodeLayout pins the byte layout of the mutating commands
func TestEncodeLayout(t *testing.T) {
	put := Encode(Put{Key: "k", Value: "vv"})
	expected := []byte{0, 0, 0, 0, 1, 'k', 0, 0, 0, 2, 'v', 'v'}
	if !bytes.Equal(put, expected) {
		t.Errorf("Encode(Put) = %v, want %v", put, expected)
	}

	del := Encode(Delete{Key: "k"})
	expected = []byte{1, 0, 0, 0, 1, 'k'}
	if !bytes.Equal(del, expected) {
		t.Errorf("Encode(Delete) = %v, want %v", del, expected)
	}
}

func TestOpcodesStable(t *testing.T) {
	expected := map[OpCode]uint8{
		OpPut: 0, OpDelete: 1, OpGet: 2, OpRange: 3, OpKeys: 4,
		OpValues: 5, OpAmount: 6, OpDumpAll: 7, OpShutdown: 8,
	}
	for op, v := range expected {
		if uint8(op) != v {
			t.Errorf("%s = %d, want %d", op, uint8(op), v)
		}
	}
}

func TestIsMutation(t *testing.T) {
	for _, cmd := range allCommands() {
		want := cmd.Op() == OpPut || cmd.Op() == OpDelete
		if got := IsMutation(cmd); got != want {
			t.Errorf("IsMutation(%s) = %v, want %v", cmd.Op(), got, want)
		}
	}
}

// TestDecodeErrors tests Decode with malformed data
func TestDecodeErrors(t *testing.T) {
	valid := Encode(Put{Key: "key", Value: "value"})

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", []byte{}, codec.ErrTruncated},
		{"unknown opcode", []byte{200}, ErrInvalidCommand},
		{"opcode only", []byte{byte(OpPut)}, codec.ErrTruncated},
		{"missing value", valid[:1+4+3], codec.ErrTruncated},
		{"truncated value", valid[:len(valid)-1], codec.ErrTruncated},
		{"trailing bytes", append(Encode(Delete{Key: "k"}), 0), ErrInvalidCommand},
		{"bad utf8", []byte{byte(OpDelete), 0, 0, 0, 1, 0xff}, codec.ErrInvalidEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Decode(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
			if cmd != nil {
				t.Errorf("Decode() returned %v together with an error", cmd)
			}
		})
	}
}

func TestDecodeMutation(t *testing.T) {
	m, err := DecodeMutation(Encode(Delete{Key: "a"}))
	if err != nil {
		t.Fatalf("DecodeMutation() failed: %v", err)
	}
	if m != (Delete{Key: "a"}) {
		t.Errorf("DecodeMutation() = %v", m)
	}

	if _, err := DecodeMutation(Encode(Get{Key: "a"})); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("DecodeMutation(Get) error = %v, want ErrInvalidCommand", err)
	}
}

func TestValidate(t *testing.T) {
	for _, cmd := range allCommands() {
		if err := Validate(cmd); err != nil {
			t.Errorf("Validate(%v) failed: %v", cmd, err)
		}
	}

	invalid := []Command{
		nil,
		&Put{Key: "k", Value: "v"},
		&Delete{Key: "k"},
		&Get{Key: "k"},
		Put{Key: "k", Value: "\xff\xfe"},
		Put{Key: "\xc3", Value: "v"},
		Delete{Key: "\xff"},
		Range{Start: "a", End: "\xff"},
		Keys{Needle: "\x80"},
	}
	for _, cmd := range invalid {
		if err := Validate(cmd); !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("Validate(%#v) = %v, expected ErrInvalidCommand", cmd, err)
		}
	}
}
