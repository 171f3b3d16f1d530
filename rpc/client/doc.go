// Package client implements a Go client for the line protocol of walkv.
//
// A Client owns one TCP connection. Requests are serialized on it, so a
// Client may be shared by goroutines, but concurrent producers get more
// throughput with one Client each.
//
// Usage Example:
//
//	c, err := client.Dial(common.ClientConfig{
//		Endpoint:      "127.0.0.1:4210",
//		TimeoutSecond: 5,
//		RetryCount:    3,
//	})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	if err := c.Put("greeting", "hello world"); err != nil {
//		return err
//	}
//	value, err := c.Get("greeting")
//
// Errors sent by the server are returned as *store.Error, so
// errors.Is(err, store.ErrKeyNotFound) works on the client side as well.
// Keys are whitespace separated on the wire and therefore must not contain
// spaces, values may contain anything.
package client
