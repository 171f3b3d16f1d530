// Package serializer encodes the results of executed commands
// (common.Response) for the HTTP front end. The HTTP API negotiates the
// format with the Accept header of the request.
//
// Key Components:
//
//   - IResponseSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Length-prefixed binary format built on package codec, the
//     same primitives that frame WAL records and snapshots. Smallest payloads and no
//     reflection, a good fit for bulk reads such as /dump.
//
//   - gobSerializerImpl: Go's gob encoding, convenient for Go clients but with larger
//     payloads than the binary format.
//
//   - jsonSerializerImpl: JSON encoding, the default of the HTTP API and useful for
//     debugging or interoperability with other systems.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s, ok := serializer.ForContentType(r.Header.Get("Accept"))
//	if !ok {
//	    s = serializer.NewJSONSerializer()
//	}
//	data, err := s.Serialize(resp)
//	// ... send data with the header Content-Type: s.ContentType() ...
//	var received common.Response
//	err = s.Deserialize(data, &received)
package serializer
