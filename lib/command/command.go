package command

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ValentinKolb/walkv/lib/codec"
)

// ErrInvalidCommand is returned for unknown opcodes, malformed operands and
// malformed textual input.
var ErrInvalidCommand = errors.New("invalid command")

// --------------------------------------------------------------------------
// Opcodes
// --------------------------------------------------------------------------

// OpCode identifies a command variant on the wire. Values are stable and
// must never be reused for a different variant.
type OpCode uint8

const (
	OpPut      OpCode = 0 // Insert or overwrite an entry.
	OpDelete   OpCode = 1 // Remove an entry.
	OpGet      OpCode = 2 // Read a single entry.
	OpRange    OpCode = 3 // Read all entries between two keys (inclusive).
	OpKeys     OpCode = 4 // Search keys by substring.
	OpValues   OpCode = 5 // Search values by substring.
	OpAmount   OpCode = 6 // Count entries.
	OpDumpAll  OpCode = 7 // Read every entry.
	OpShutdown OpCode = 8 // Stop the ingestion pipeline.
)

func (op OpCode) String() string {
	switch op {
	case OpPut:
		return "Put"
	case OpDelete:
		return "Delete"
	case OpGet:
		return "Get"
	case OpRange:
		return "Range"
	case OpKeys:
		return "Keys"
	case OpValues:
		return "Values"
	case OpAmount:
		return "Amount"
	case OpDumpAll:
		return "DumpAll"
	case OpShutdown:
		return "Shutdown"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(op))
	}
}

// --------------------------------------------------------------------------
// Command Variants
// --------------------------------------------------------------------------

// Command is one operation understood by the store. The set of
// implementations is closed, it is sealed by the unexported appendOperands.
type Command interface {
	// Op returns the opcode of the variant.
	Op() OpCode
	fmt.Stringer

	appendOperands(buf []byte) []byte
}

// Mutation is a Command that changes state and therefore has to be written to
// the WAL before it is applied. Only Put and Delete implement it.
type Mutation interface {
	Command
	mutation()
}

// Put inserts or overwrites the value of Key.
type Put struct {
	Key   string
	Value string
}

// Delete removes Key. Deleting an absent key is not an error.
type Delete struct {
	Key string
}

// Get reads the value of Key.
type Get struct {
	Key string
}

// Range reads all entries with Start <= key <= End.
type Range struct {
	Start string
	End   string
}

// Keys returns all keys containing Needle.
type Keys struct {
	Needle string
}

// Values returns all values containing Needle.
type Values struct {
	Needle string
}

// Amount returns the number of entries.
type Amount struct{}

// DumpAll returns every entry in key order.
type DumpAll struct{}

// Shutdown requests that the ingestion pipeline drain and stop.
type Shutdown struct{}

func (Put) Op() OpCode      { return OpPut }
func (Delete) Op() OpCode   { return OpDelete }
func (Get) Op() OpCode      { return OpGet }
func (Range) Op() OpCode    { return OpRange }
func (Keys) Op() OpCode     { return OpKeys }
func (Values) Op() OpCode   { return OpValues }
func (Amount) Op() OpCode   { return OpAmount }
func (DumpAll) Op() OpCode  { return OpDumpAll }
func (Shutdown) Op() OpCode { return OpShutdown }

func (Put) mutation()    {}
func (Delete) mutation() {}

func (c Put) String() string    { return fmt.Sprintf("PUT key=%s value=%s", c.Key, c.Value) }
func (c Delete) String() string { return fmt.Sprintf("DELETE key=%s", c.Key) }
func (c Get) String() string    { return fmt.Sprintf("GET key=%s", c.Key) }
func (c Range) String() string  { return fmt.Sprintf("RANGE start=%s end=%s", c.Start, c.End) }
func (c Keys) String() string   { return fmt.Sprintf("KEYS needle=%s", c.Needle) }
func (c Values) String() string { return fmt.Sprintf("VALUES needle=%s", c.Needle) }
func (Amount) String() string   { return "AMOUNT" }
func (DumpAll) String() string  { return "DUMPALL" }
func (Shutdown) String() string { return "SHUTDOWN" }

func (c Put) appendOperands(buf []byte) []byte {
	buf = codec.AppendString(buf, c.Key)
	return codec.AppendString(buf, c.Value)
}

func (c Delete) appendOperands(buf []byte) []byte { return codec.AppendString(buf, c.Key) }
func (c Get) appendOperands(buf []byte) []byte    { return codec.AppendString(buf, c.Key) }

func (c Range) appendOperands(buf []byte) []byte {
	buf = codec.AppendString(buf, c.Start)
	return codec.AppendString(buf, c.End)
}

func (c Keys) appendOperands(buf []byte) []byte   { return codec.AppendString(buf, c.Needle) }
func (c Values) appendOperands(buf []byte) []byte { return codec.AppendString(buf, c.Needle) }
func (Amount) appendOperands(buf []byte) []byte   { return buf }
func (DumpAll) appendOperands(buf []byte) []byte  { return buf }
func (Shutdown) appendOperands(buf []byte) []byte { return buf }

// IsMutation reports whether c must be written to the WAL.
func IsMutation(c Command) bool {
	_, ok := c.(Mutation)
	return ok
}

// Validate reports whether c can be encoded and decoded again: it must be
// one of the value variants (pointers to variants satisfy the interfaces
// too but are not part of the command set) and every operand must be valid
// UTF-8. Errors wrap ErrInvalidCommand.
func Validate(c Command) error {
	var operands []string
	switch c := c.(type) {
	case Put:
		operands = []string{c.Key, c.Value}
	case Delete:
		operands = []string{c.Key}
	case Get:
		operands = []string{c.Key}
	case Range:
		operands = []string{c.Start, c.End}
	case Keys:
		operands = []string{c.Needle}
	case Values:
		operands = []string{c.Needle}
	case Amount, DumpAll, Shutdown:
	default:
		return fmt.Errorf("%w: unsupported command type %T", ErrInvalidCommand, c)
	}

	for _, op := range operands {
		if !utf8.ValidString(op) {
			return fmt.Errorf("%w: %s operand is not valid utf-8", ErrInvalidCommand, c.Op())
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Encode serializes a command with the format:
// 1 byte opcode, followed by the operands of the variant in declaration
// order, each as a length-prefixed string (see codec.AppendString).
func Encode(c Command) []byte {
	return AppendEncoded(nil, c)
}

// AppendEncoded appends the encoding of c to buf.
func AppendEncoded(buf []byte, c Command) []byte {
	buf = append(buf, byte(c.Op()))
	return c.appendOperands(buf)
}

// Decode parses a command produced by Encode. Trailing bytes after the
// operands are rejected.
func Decode(data []byte) (Command, error) {
	r := codec.NewReader(data)

	op, err := r.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("empty command: %w", err)
	}

	var cmd Command
	switch OpCode(op) {
	case OpPut:
		var c Put
		if c.Key, err = r.ReadString(); err == nil {
			c.Value, err = r.ReadString()
		}
		cmd = c
	case OpDelete:
		var c Delete
		c.Key, err = r.ReadString()
		cmd = c
	case OpGet:
		var c Get
		c.Key, err = r.ReadString()
		cmd = c
	case OpRange:
		var c Range
		if c.Start, err = r.ReadString(); err == nil {
			c.End, err = r.ReadString()
		}
		cmd = c
	case OpKeys:
		var c Keys
		c.Needle, err = r.ReadString()
		cmd = c
	case OpValues:
		var c Values
		c.Needle, err = r.ReadString()
		cmd = c
	case OpAmount:
		cmd = Amount{}
	case OpDumpAll:
		cmd = DumpAll{}
	case OpShutdown:
		cmd = Shutdown{}
	default:
		return nil, fmt.Errorf("%w: unknown opcode %d", ErrInvalidCommand, op)
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", OpCode(op), err)
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %s", ErrInvalidCommand, r.Remaining(), OpCode(op))
	}
	return cmd, nil
}

// DecodeMutation is like Decode but additionally rejects read-only and
// control commands.
func DecodeMutation(data []byte) (Mutation, error) {
	cmd, err := Decode(data)
	if err != nil {
		return nil, err
	}
	m, ok := cmd.(Mutation)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a mutation", ErrInvalidCommand, cmd.Op())
	}
	return m, nil
}
