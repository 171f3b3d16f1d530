// Package tcp implements the line protocol front end of walkv.
//
// Every request is one line terminated by "\n", parsed with the parser
// package. Every connection is served by its own goroutine which executes
// the commands of that connection strictly in order, a reply is written
// before the next line is read. Replies are:
//
//	OK                       successful put, delete and shutdown
//	<value>                  get
//	<n>                      length
//	<item>... END            keys and values, one item per line
//	<key>\t<value>... END    range and dump_all
//	ERR: <code>: <message>   any failure
//
// Keys and values are escaped with common.EscapeLine so that they fit on one
// line. The open connections are tracked in an xsync.MapOf registry, which
// lets Shutdown wake up idle readers and wait for busy ones.
package tcp
