package serializer

import (
	"bytes"
	"encoding/gob"

	"github.com/ValentinKolb/walkv/rpc/common"
)

// NewGOBSerializer creates a new serializer using Go's binary gob format
func NewGOBSerializer() IResponseSerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the IResponseSerializer interface using gob encoding
type gobSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IResponseSerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) ContentType() string {
	return ContentTypeGOB
}

func (g gobSerializerImpl) Serialize(resp common.Response) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(resp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) Deserialize(b []byte, resp *common.Response) error {
	buf := bytes.NewBuffer(b)
	dec := gob.NewDecoder(buf)
	return dec.Decode(resp)
}
