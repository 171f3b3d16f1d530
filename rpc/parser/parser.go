package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/ValentinKolb/walkv/rpc/common"
)

// ErrEmpty is returned for blank lines, the TCP front end ignores them
var ErrEmpty = errors.New("empty line")

// Request is one parsed protocol line. Exit requests close the connection
// and carry no command.
type Request struct {
	Command command.Command
	Exit    bool
}

// Parse turns one line of the text protocol into a command:
//
//	put <key> <value...>   value is the rest of the line
//	delete <key>
//	get <key>
//	range <start> <end>
//	keys [needle]
//	values [needle]
//	length
//	dump_all
//	shutdown
//	exit
//
// Verbs are case-insensitive. Keys and values are unescaped with
// common.UnescapeLine, so "\n" in a value becomes a line break. Errors wrap
// command.ErrInvalidCommand.
func Parse(line string) (Request, error) {
	line = strings.TrimRight(line, "\r\n")
	verb, rest := next(line)
	if verb == "" {
		return Request{}, ErrEmpty
	}

	switch strings.ToLower(verb) {
	case "put":
		key, value := next(rest)
		if key == "" {
			return Request{}, invalid("put needs a key and a value")
		}
		value = strings.TrimLeftFunc(value, unicode.IsSpace)
		if value == "" {
			return Request{}, invalid("put needs a value")
		}
		return cmd(command.Put{Key: common.UnescapeLine(key), Value: common.UnescapeLine(value)}), nil

	case "delete":
		key, err := exactlyOne("delete", rest)
		if err != nil {
			return Request{}, err
		}
		return cmd(command.Delete{Key: key}), nil

	case "get":
		key, err := exactlyOne("get", rest)
		if err != nil {
			return Request{}, err
		}
		return cmd(command.Get{Key: key}), nil

	case "range":
		args := strings.Fields(rest)
		if len(args) != 2 {
			return Request{}, invalid("range needs a start and an end key, got %d arguments", len(args))
		}
		return cmd(command.Range{Start: common.UnescapeLine(args[0]), End: common.UnescapeLine(args[1])}), nil

	case "keys", "values":
		args := strings.Fields(rest)
		if len(args) > 1 {
			return Request{}, invalid("%s takes at most one needle, got %d arguments", verb, len(args))
		}
		needle := ""
		if len(args) == 1 {
			needle = common.UnescapeLine(args[0])
		}
		if strings.EqualFold(verb, "keys") {
			return cmd(command.Keys{Needle: needle}), nil
		}
		return cmd(command.Values{Needle: needle}), nil

	case "length":
		return noArgs(verb, rest, command.Amount{})
	case "dump_all":
		return noArgs(verb, rest, command.DumpAll{})
	case "shutdown":
		return noArgs(verb, rest, command.Shutdown{})
	case "exit":
		if strings.TrimSpace(rest) != "" {
			return Request{}, invalid("exit takes no arguments")
		}
		return Request{Exit: true}, nil

	default:
		return Request{}, invalid("unknown command %q", verb)
	}
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// next splits off the first whitespace separated token
func next(s string) (token, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}

func exactlyOne(verb, rest string) (string, error) {
	args := strings.Fields(rest)
	if len(args) != 1 {
		return "", invalid("%s needs exactly one key, got %d arguments", verb, len(args))
	}
	return common.UnescapeLine(args[0]), nil
}

func noArgs(verb, rest string, c command.Command) (Request, error) {
	if strings.TrimSpace(rest) != "" {
		return Request{}, invalid("%s takes no arguments", verb)
	}
	return cmd(c), nil
}

func cmd(c command.Command) Request {
	return Request{Command: c}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", command.ErrInvalidCommand, fmt.Sprintf(format, args...))
}
