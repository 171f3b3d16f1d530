// Package backup creates and restores portable, compressed copies of the
// state of walkv.
//
// A backup is the snapshot encoding of the state, compressed with one of
// snappy (github.com/golang/snappy), zstd (github.com/klauspost/compress) or
// lz4 (github.com/pierrec/lz4), behind a header with a version, the codec,
// the raw size and an xxh3 checksum (github.com/zeebo/xxh3) of the raw
// snapshot. Read verifies all of them before touching the target database.
package backup
