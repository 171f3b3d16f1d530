package lstore

import (
	"testing"

	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/db/engines/ordered"
	"github.com/ValentinKolb/walkv/lib/store"
	storetesting "github.com/ValentinKolb/walkv/lib/store/testing"
)

func Test(t *testing.T) {
	storetesting.RunStoreTests(t, "LocalStore", func(t *testing.T) store.IStore {
		return NewLocalStore(func() db.KVDB {
			return ordered.NewOrderedDB(nil)
		})
	})
}
