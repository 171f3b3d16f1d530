package serializer

import (
	"fmt"
	"math"

	"github.com/ValentinKolb/walkv/lib/codec"
	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/rpc/common"
)

// NewBinarySerializer creates a new serializer using the length-prefixed
// binary format of the WAL and snapshot files (see package codec)
func NewBinarySerializer() IResponseSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IResponseSerializer with the format
//
//	[u8 kind][payload]
//
// where the payload depends on the kind:
//
//	OK:    empty
//	Value: string
//	Count: u32
//	List:  u32 n, n strings
//	Pairs: u32 n, n (key string, value string)
//
// Strings are encoded with codec.AppendString, all integers are big-endian.
type binarySerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IResponseSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) ContentType() string {
	return ContentTypeBinary
}

func (b binarySerializerImpl) Serialize(resp common.Response) ([]byte, error) {
	result := make([]byte, 0, b.sizeBytes(resp))
	result = append(result, byte(resp.Kind))

	switch resp.Kind {
	case common.KindOK:
	case common.KindValue:
		result = codec.AppendString(result, resp.Value)
	case common.KindCount:
		if resp.Count < 0 || uint64(resp.Count) > math.MaxUint32 {
			return nil, fmt.Errorf("count %d does not fit into 32 bits", resp.Count)
		}
		result = codec.AppendU32(result, uint32(resp.Count))
	case common.KindList:
		result = codec.AppendU32(result, uint32(len(resp.Items)))
		for _, item := range resp.Items {
			result = codec.AppendString(result, item)
		}
	case common.KindPairs:
		result = codec.AppendU32(result, uint32(len(resp.Pairs)))
		for _, p := range resp.Pairs {
			result = codec.AppendString(result, p.Key)
			result = codec.AppendString(result, p.Value)
		}
	default:
		return nil, fmt.Errorf("unknown response kind %s", resp.Kind)
	}

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, resp *common.Response) error {
	r := codec.NewReader(data)

	kind, err := r.ReadU8()
	if err != nil {
		return fmt.Errorf("read response kind: %w", err)
	}

	result := common.Response{Kind: common.ResponseKind(kind)}
	switch result.Kind {
	case common.KindOK:
	case common.KindValue:
		if result.Value, err = r.ReadString(); err != nil {
			return fmt.Errorf("read value: %w", err)
		}
	case common.KindCount:
		n, err := r.ReadU32()
		if err != nil {
			return fmt.Errorf("read count: %w", err)
		}
		result.Count = int(n)
	case common.KindList:
		n, err := b.readLen(r, 4)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			item, err := r.ReadString()
			if err != nil {
				return fmt.Errorf("read item %d: %w", i, err)
			}
			result.Items = append(result.Items, item)
		}
	case common.KindPairs:
		n, err := b.readLen(r, 8)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			var p db.Pair
			if p.Key, err = r.ReadString(); err != nil {
				return fmt.Errorf("read key of pair %d: %w", i, err)
			}
			if p.Value, err = r.ReadString(); err != nil {
				return fmt.Errorf("read value of pair %d: %w", i, err)
			}
			result.Pairs = append(result.Pairs, p)
		}
	default:
		return fmt.Errorf("unknown response kind %d", kind)
	}

	if r.Remaining() != 0 {
		return fmt.Errorf("%d trailing bytes after %s response", r.Remaining(), result.Kind)
	}

	*resp = result
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// readLen reads an element count and rejects counts that can't possibly fit
// into the remaining bytes, minSize is the smallest encoding of one element
func (b binarySerializerImpl) readLen(r *codec.Reader, minSize int) (int, error) {
	n, err := r.ReadU32()
	if err != nil {
		return 0, fmt.Errorf("read element count: %w", err)
	}
	if uint64(n)*uint64(minSize) > uint64(r.Remaining()) {
		return 0, fmt.Errorf("%w: %d elements announced, only %d bytes left", codec.ErrTruncated, n, r.Remaining())
	}
	return int(n), nil
}

// sizeBytes returns the exact size of the serialized response
func (b binarySerializerImpl) sizeBytes(resp common.Response) int {
	size := 1 // kind
	switch resp.Kind {
	case common.KindValue:
		size += codec.StringSize(resp.Value)
	case common.KindCount:
		size += 4
	case common.KindList:
		size += 4
		for _, item := range resp.Items {
			size += codec.StringSize(item)
		}
	case common.KindPairs:
		size += 4
		for _, p := range resp.Pairs {
			size += codec.StringSize(p.Key) + codec.StringSize(p.Value)
		}
	}
	return size
}
