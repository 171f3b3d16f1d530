package serializer

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/ValentinKolb/walkv/lib/codec"
	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IResponseSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testResponses creates one response per kind, including values that
// would break a line-oriented format
func testResponses() []common.Response {
	return []common.Response{
		{Kind: common.KindOK},
		{Kind: common.KindValue, Value: "test-value"},
		{Kind: common.KindValue, Value: "multi\nline\tvalue with ünïcödé"},
		{Kind: common.KindCount, Count: 42},
		{Kind: common.KindList, Items: []string{"a", "b", "with\nnewline"}},
		{Kind: common.KindPairs, Pairs: []db.Pair{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}},
	}
}

// TestSerializerRoundTrip tests that responses can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	responses := testResponses()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, resp := range responses {
				data, err := serializer.Serialize(resp)
				if err != nil {
					t.Errorf("Failed to serialize response %d: %v", i, err)
					continue
				}

				var result common.Response
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize response %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(resp, result) {
					t.Errorf("Response %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, resp, result)
				}
			}
		})
	}
}

func TestForContentType(t *testing.T) {
	tests := []struct {
		header   string
		expected string
		ok       bool
	}{
		{"application/json", ContentTypeJSON, true},
		{"application/json; charset=utf-8", ContentTypeJSON, true},
		{"Application/Octet-Stream", ContentTypeBinary, true},
		{"application/x-gob", ContentTypeGOB, true},
		{"text/html", "", false},
		{"", "", false},
	}

	for _, tc := range tests {
		s, ok := ForContentType(tc.header)
		if ok != tc.ok {
			t.Errorf("ForContentType(%q) ok = %v, expected %v", tc.header, ok, tc.ok)
			continue
		}
		if ok && s.ContentType() != tc.expected {
			t.Errorf("ForContentType(%q) = %s, expected %s", tc.header, s.ContentType(), tc.expected)
		}
	}
}

func TestBinaryLayout(t *testing.T) {
	data, err := NewBinarySerializer().Serialize(common.Response{Kind: common.KindList, Items: []string{"ab"}})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	expected := []byte{byte(common.KindList), 0, 0, 0, 1, 0, 0, 0, 2, 'a', 'b'}
	if !bytes.Equal(data, expected) {
		t.Errorf("Serialized = %v, expected %v", data, expected)
	}
}

func TestBinaryMalformedInput(t *testing.T) {
	s := NewBinarySerializer()
	valid, err := s.Serialize(common.Response{Kind: common.KindPairs, Pairs: []db.Pair{{Key: "k", Value: "v"}}})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	// every truncation must fail without panicking
	for i := 0; i < len(valid); i++ {
		var resp common.Response
		if err := s.Deserialize(valid[:i], &resp); err == nil {
			t.Errorf("Expected an error for %d of %d bytes", i, len(valid))
		}
	}

	var resp common.Response
	if err := s.Deserialize(append(valid, 0), &resp); err == nil {
		t.Errorf("Expected an error for trailing bytes")
	}
	if err := s.Deserialize([]byte{99}, &resp); err == nil {
		t.Errorf("Expected an error for an unknown kind")
	}

	// a huge element count must not allocate, it is rejected up front
	huge := []byte{byte(common.KindList), 0xff, 0xff, 0xff, 0xff}
	if err := s.Deserialize(huge, &resp); !errors.Is(err, codec.ErrTruncated) {
		t.Errorf("Expected ErrTruncated for a huge count, got %v", err)
	}

	if _, err := s.Serialize(common.Response{Kind: common.KindCount, Count: -1}); err == nil {
		t.Errorf("Expected an error for a negative count")
	}
}
