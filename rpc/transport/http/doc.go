// Package http implements the HTTP front end of walkv on top of a chi router.
//
// Keys are addressed as /kv/{key}, the value of a PUT is the raw request
// body. Reads that return several entries answer with JSON. Errors are
// answered with a JSON body {"code": ..., "error": ...} and a status derived
// from the error code:
//
//	KeyNotFound     404
//	InvalidCommand  400
//	QueueClosed     503
//	anything else   500
//
// The router also exposes the process metrics in the Prometheus text format
// on /metrics. With log level debug every request is logged with its chi
// request id, status and duration.
package http
