// Package codec implements the primitive binary encoding shared by every
// on-disk record of walkv: fixed-width big-endian integers and strings
// prefixed with their 4 byte big-endian length.
//
// Writers are total and append to a caller-owned buffer. Reading is done
// through a Reader that advances a cursor over a byte slice and reports
// malformed input as ErrTruncated or ErrInvalidEncoding.
package codec
