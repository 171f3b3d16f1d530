// Package transport defines the contract between the walkv server and its
// front ends.
//
// A front end (see the tcp and http sub packages) owns a listener, turns the
// bytes it receives into command.Command values and hands them to a Handler.
// The Handler result is rendered back in the format of the front end. All
// front ends of a server share the same Handler and therefore the same store,
// so a key written over HTTP is visible on the TCP port right away.
//
// The life cycle of a transport is:
//
//	t.RegisterHandler(h)
//	l, err := t.Listen(config)
//	go t.Serve(l)
//	...
//	t.Shutdown(ctx)
package transport
