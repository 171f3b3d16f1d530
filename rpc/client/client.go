package client

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/store"
	"github.com/ValentinKolb/walkv/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("client")

// ErrProtocol is returned if the server sent a reply that does not fit the
// request.
var ErrProtocol = errors.New("unexpected reply")

// Client speaks the line protocol with one server over one connection. It is
// safe for concurrent use, requests are serialized.
type Client struct {
	config common.ClientConfig

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

// Dial connects to config.Endpoint. A failed attempt is retried up to
// config.RetryCount times with exponential backoff.
func Dial(config common.ClientConfig) (*Client, error) {
	attempts := config.RetryCount
	if attempts < 1 {
		attempts = 1
	}
	timeout := time.Duration(config.TimeoutSecond) * time.Second

	// Initial backoff duration in milliseconds
	backoffMs := 50

	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, err := net.DialTimeout("tcp", config.Endpoint, timeout)
		if err == nil {
			return &Client{
				config: config,
				conn:   conn,
				r:      bufio.NewReader(conn),
				w:      bufio.NewWriter(conn),
			}, nil
		}

		lastErr = err
		Logger.Debugf("Connection attempt %d/%d to %s failed: %v", i+1, attempts, config.Endpoint, err)

		if i+1 < attempts {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
	}

	return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", config.Endpoint, attempts, lastErr)
}

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

// Put stores value under key. It returns after the server made the
// mutation durable.
func (c *Client) Put(key, value string) error {
	line, err := request("put", key)
	if err != nil {
		return err
	}
	return c.expectOK(line + " " + common.EscapeLine(value))
}

// Delete removes key. Deleting an absent key is not an error.
func (c *Client) Delete(key string) error {
	line, err := request("delete", key)
	if err != nil {
		return err
	}
	return c.expectOK(line)
}

// Get returns the value of key or an error matching store.ErrKeyNotFound
func (c *Client) Get(key string) (string, error) {
	line, err := request("get", key)
	if err != nil {
		return "", err
	}
	var value string
	err = c.roundTrip(line, func() error {
		reply, err := c.readReply()
		value = common.UnescapeLine(reply)
		return err
	})
	return value, err
}

// Range returns all pairs with start <= key <= end in key order
func (c *Client) Range(start, end string) ([]db.Pair, error) {
	line, err := request("range", start, end)
	if err != nil {
		return nil, err
	}
	return c.pairs(line)
}

// Keys returns all keys containing needle
func (c *Client) Keys(needle string) ([]string, error) {
	line, err := withNeedle("keys", needle)
	if err != nil {
		return nil, err
	}
	return c.list(line)
}

// Values returns the values containing needle, ordered by their key
func (c *Client) Values(needle string) ([]string, error) {
	line, err := withNeedle("values", needle)
	if err != nil {
		return nil, err
	}
	return c.list(line)
}

// Length returns the number of stored keys
func (c *Client) Length() (int, error) {
	var n int
	err := c.roundTrip("length", func() error {
		line, err := c.readReply()
		if err != nil {
			return err
		}
		n, err = strconv.Atoi(line)
		if err != nil {
			return fmt.Errorf("%w: %q is no count", ErrProtocol, line)
		}
		return nil
	})
	return n, err
}

// DumpAll returns every pair in key order
func (c *Client) DumpAll() ([]db.Pair, error) {
	return c.pairs("dump_all")
}

// Shutdown asks the server to stop. It returns after the server made every
// accepted mutation durable.
func (c *Client) Shutdown() error {
	return c.expectOK("shutdown")
}

// Close sends exit and closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	_, _ = c.w.WriteString("exit\n")
	_ = c.w.Flush()
	err := c.conn.Close()
	c.conn = nil
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// roundTrip sends one request line and lets read consume the reply
func (c *Client) roundTrip(line string, read func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return net.ErrClosed
	}
	if c.config.TimeoutSecond > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(time.Duration(c.config.TimeoutSecond) * time.Second))
	}

	if _, err := c.w.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return read()
}

// readLine reads one line without its terminator
func (c *Client) readLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("receive: %w", err)
	}
	return strings.TrimSuffix(line, "\n"), nil
}

// readReply reads one line and turns error lines into errors
func (c *Client) readReply() (string, error) {
	line, err := c.readLine()
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(line, common.ErrPrefix) {
		return "", common.ParseError(line)
	}
	return line, nil
}

func (c *Client) expectOK(line string) error {
	return c.roundTrip(line, func() error {
		reply, err := c.readReply()
		if err != nil {
			return err
		}
		if reply != common.ReplyOK {
			return fmt.Errorf("%w: %q instead of %s", ErrProtocol, reply, common.ReplyOK)
		}
		return nil
	})
}

// list returns the unescaped items of a list reply
func (c *Client) list(line string) ([]string, error) {
	lines, err := c.rawList(line)
	if err != nil {
		return nil, err
	}
	for i, l := range lines {
		lines[i] = common.UnescapeLine(l)
	}
	return lines, nil
}

// pairs returns the pairs of a pair reply. The lines stay escaped until they
// are split at the tab, so tabs inside keys and values survive.
func (c *Client) pairs(line string) ([]db.Pair, error) {
	lines, err := c.rawList(line)
	if err != nil {
		return nil, err
	}
	pairs := make([]db.Pair, 0, len(lines))
	for _, l := range lines {
		key, value, ok := strings.Cut(l, "\t")
		if !ok {
			return nil, fmt.Errorf("%w: %q is no pair", ErrProtocol, l)
		}
		pairs = append(pairs, db.Pair{Key: common.UnescapeLine(key), Value: common.UnescapeLine(value)})
	}
	return pairs, nil
}

// rawList reads lines up to END. Only the first line can be an error.
func (c *Client) rawList(line string) ([]string, error) {
	lines := []string{}
	err := c.roundTrip(line, func() error {
		reply, err := c.readReply()
		for ; err == nil; reply, err = c.readLine() {
			if reply == common.ReplyEnd {
				return nil
			}
			lines = append(lines, reply)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// request builds a request line. Arguments are separated by whitespace on
// the wire, so they must be non-empty and must not contain spaces.
func request(verb string, args ...string) (string, error) {
	var sb strings.Builder
	sb.WriteString(verb)
	for _, arg := range args {
		escaped := common.EscapeLine(arg)
		if escaped == "" || strings.IndexFunc(escaped, unicode.IsSpace) >= 0 {
			return "", store.NewError(store.RetCInvalidCommand, fmt.Sprintf("%s: argument %q must be non-empty and must not contain spaces", verb, arg))
		}
		sb.WriteByte(' ')
		sb.WriteString(escaped)
	}
	return sb.String(), nil
}

func withNeedle(verb, needle string) (string, error) {
	if needle == "" {
		return verb, nil
	}
	return request(verb, needle)
}
