package serializer

import (
	"strings"

	"github.com/ValentinKolb/walkv/rpc/common"
)

// IResponseSerializer is the interface for all Response serializers
type IResponseSerializer interface {
	// ContentType returns the media type of the serialized form, it is used
	// for content negotiation by the HTTP front end
	ContentType() string
	// Serialize serializes a Response into a byte array
	Serialize(resp common.Response) ([]byte, error)
	// Deserialize deserializes a byte array into a Response
	Deserialize(b []byte, resp *common.Response) error
}

// Media types of the serializer implementations
const (
	ContentTypeJSON   = "application/json"
	ContentTypeGOB    = "application/x-gob"
	ContentTypeBinary = "application/octet-stream"
)

// ForContentType returns the serializer for a media type, parameters such
// as "; charset=utf-8" are ignored. The boolean is false for unknown types.
func ForContentType(contentType string) (IResponseSerializer, bool) {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch strings.TrimSpace(strings.ToLower(mediaType)) {
	case ContentTypeJSON:
		return NewJSONSerializer(), true
	case ContentTypeGOB:
		return NewGOBSerializer(), true
	case ContentTypeBinary:
		return NewBinarySerializer(), true
	default:
		return nil, false
	}
}
