package common

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/store"
)

// --------------------------------------------------------------------------
// Line protocol constants
// --------------------------------------------------------------------------

const (
	ReplyOK   = "OK"    // reply of successful mutations and shutdown
	ReplyEnd  = "END"   // terminates list replies
	ErrPrefix = "ERR: " // prefix of error replies
)

// --------------------------------------------------------------------------
// Response
// --------------------------------------------------------------------------

// ResponseKind tells which field of a Response is set
type ResponseKind int

const (
	KindOK    ResponseKind = iota // no payload
	KindValue                     // Value
	KindCount                     // Count
	KindList                      // Items
	KindPairs                     // Pairs
)

func (k ResponseKind) String() string {
	switch k {
	case KindOK:
		return "OK"
	case KindValue:
		return "Value"
	case KindCount:
		return "Count"
	case KindList:
		return "List"
	case KindPairs:
		return "Pairs"
	default:
		return fmt.Sprintf("ResponseKind(%d)", int(k))
	}
}

// Response is the result of executing one command, independent of the
// front end that renders it.
type Response struct {
	Kind  ResponseKind `json:"kind"`
	Value string       `json:"value,omitempty"`
	Count int          `json:"count,omitempty"`
	Items []string     `json:"items,omitempty"`
	Pairs []db.Pair    `json:"pairs,omitempty"`
}

// Lines renders the response for the line protocol. Values are escaped with
// EscapeLine, pairs are written as "key<TAB>value".
func (r Response) Lines() []string {
	switch r.Kind {
	case KindValue:
		return []string{EscapeLine(r.Value)}
	case KindCount:
		return []string{strconv.Itoa(r.Count)}
	case KindList:
		lines := make([]string, 0, len(r.Items)+1)
		for _, item := range r.Items {
			lines = append(lines, EscapeLine(item))
		}
		return append(lines, ReplyEnd)
	case KindPairs:
		lines := make([]string, 0, len(r.Pairs)+1)
		for _, p := range r.Pairs {
			lines = append(lines, EscapeLine(p.Key)+"\t"+EscapeLine(p.Value))
		}
		return append(lines, ReplyEnd)
	default:
		return []string{ReplyOK}
	}
}

// WriteResponse writes the lines of r, or an error line if err is not nil
func WriteResponse(w *bufio.Writer, r Response, err error) error {
	if err != nil {
		return WriteError(w, err)
	}
	for _, line := range r.Lines() {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteError writes one error line "ERR: <code>: <message>"
func WriteError(w *bufio.Writer, err error) error {
	code := store.CodeOf(err).String()
	msg := err.Error()
	if !strings.HasPrefix(msg, code+": ") {
		msg = code + ": " + msg
	}
	if _, err := w.WriteString(ErrPrefix + EscapeLine(msg) + "\n"); err != nil {
		return err
	}
	return w.Flush()
}

// ParseError turns an error line back into a *store.Error. The code is
// restored from the "<code>: " prefix if present.
func ParseError(line string) error {
	msg := UnescapeLine(strings.TrimPrefix(line, ErrPrefix))
	name, rest, found := strings.Cut(msg, ": ")
	if code, ok := store.ParseRetCode(name); found && ok {
		return store.NewError(code, rest)
	}
	return store.NewError(store.RetCInternalError, msg)
}

// --------------------------------------------------------------------------
// Escaping
// --------------------------------------------------------------------------

var (
	escaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	unescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\r`, "\r", `\t`, "\t")
)

// EscapeLine escapes backslashes, line terminators and tabs so that s fits
// on a single protocol line.
func EscapeLine(s string) string {
	return escaper.Replace(s)
}

// UnescapeLine reverses EscapeLine
func UnescapeLine(s string) string {
	return unescaper.Replace(s)
}
