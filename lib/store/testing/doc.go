// Package testing provides a shared test suite for store.IStore
// implementations.
//
//	func Test(t *testing.T) {
//		storetesting.RunStoreTests(t, "MyStore", func(t *testing.T) store.IStore {
//			return NewMyStore(t.TempDir())
//		})
//	}
package testing
