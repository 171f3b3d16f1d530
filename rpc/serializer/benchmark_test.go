package serializer

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/rpc/common"
)

// benchmarkResponses returns a set of responses for targeted benchmarking
func benchmarkResponses() map[string]common.Response {
	pairs := func(n int) []db.Pair {
		result := make([]db.Pair, n)
		for i := range result {
			result[i] = db.Pair{Key: fmt.Sprintf("key-%06d", i), Value: fmt.Sprintf("value-%06d", i)}
		}
		return result
	}

	return map[string]common.Response{
		"OK":         {Kind: common.KindOK},
		"SmallValue": {Kind: common.KindValue, Value: "v"},
		"LargeValue": {Kind: common.KindValue, Value: string(make([]byte, 16*1024))},
		"Count":      {Kind: common.KindCount, Count: 123456},
		"SmallList":  {Kind: common.KindList, Items: []string{"a", "b", "c"}},
		"SmallDump":  {Kind: common.KindPairs, Pairs: pairs(10)},
		"LargeDump":  {Kind: common.KindPairs, Pairs: pairs(10_000)},
	}
}

func BenchmarkSerialize(b *testing.B) {
	for name, factory := range testSerializers {
		serializer := factory()
		for respName, resp := range benchmarkResponses() {
			b.Run(fmt.Sprintf("%s/%s", name, respName), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, err := serializer.Serialize(resp); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkDeserialize(b *testing.B) {
	for name, factory := range testSerializers {
		serializer := factory()
		for respName, resp := range benchmarkResponses() {
			data, err := serializer.Serialize(resp)
			if err != nil {
				b.Fatal(err)
			}
			b.Run(fmt.Sprintf("%s/%s", name, respName), func(b *testing.B) {
				b.ReportAllocs()
				b.SetBytes(int64(len(data)))
				for i := 0; i < b.N; i++ {
					var result common.Response
					if err := serializer.Deserialize(data, &result); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
