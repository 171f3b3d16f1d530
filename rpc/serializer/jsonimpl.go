package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/walkv/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding
func NewJSONSerializer() IResponseSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IResponseSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IResponseSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) ContentType() string {
	return ContentTypeJSON
}

func (j jsonSerializerImpl) Serialize(resp common.Response) ([]byte, error) {
	return json.Marshal(resp)
}

func (j jsonSerializerImpl) Deserialize(b []byte, resp *common.Response) error {
	return json.Unmarshal(b, resp)
}
