// Package util provides utility components for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - statistics: a SizeHistogram for tracking the value size distribution reported by GetInfo
package util
