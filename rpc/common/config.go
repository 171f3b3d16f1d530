package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of a walkv server. It is
// built once by the CLI and passed to the components that need it.
type ServerConfig struct {
	// Front ends
	Endpoint     string // address of the line protocol (TCP) listener
	HTTPEndpoint string // address of the HTTP listener, empty disables HTTP

	// Storage
	DataDir       string
	MaxWALSize    int64
	QueueCapacity int
	NoSync        bool
	InMemory      bool // no WAL and no snapshot, state is lost on exit

	// Connection timeout (idle connections are closed), 0 disables it
	TimeoutSecond int64

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Front ends
	addSection("Front Ends")
	addField("TCP Endpoint", c.Endpoint)
	if c.HTTPEndpoint != "" {
		addField("HTTP Endpoint", c.HTTPEndpoint)
	} else {
		addField("HTTP Endpoint", "disabled")
	}
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	// Storage
	addSection("Storage")
	if c.InMemory {
		addField("Mode", "in-memory (not durable)")
	} else {
		addField("Mode", "write-ahead log")
		addField("Data Directory", c.DataDir)
		addField("Max WAL Size", fmt.Sprintf("%d bytes", c.MaxWALSize))
		addField("Fsync", strconv.FormatBool(!c.NoSync))
	}
	addField("Queue Capacity", strconv.Itoa(c.QueueCapacity))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoint      string
	TimeoutSecond int
	RetryCount    int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	sb.WriteString("\nCLIENT CONFIGURATION\n")
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Endpoint", c.Endpoint))
	sb.WriteString(fmt.Sprintf("  %-22s: %d sec\n", "Timeout", c.TimeoutSecond))
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Retry Count", strconv.Itoa(c.RetryCount)))

	return sb.String()
}
