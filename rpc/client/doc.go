// Package client implements the uniauth client library used by applications
// that share sign-on state through the uniauth daemon.
//
// Key Components:
//
//   - SessionClient: Lookup, Create, Commit and Transfer of session records.
//     Each call is one synchronous request/response exchange.
//
// Error Handling:
//
//	A returned error is fatal for the call: the request didn't fit into the
//	maximum message size (serializer.ErrOversizeMessage), contained a string with
//	a null byte (serializer.ErrEmbeddedNull), or the exchange with the daemon failed
//	(base.ErrTransport, base.ErrProtocol). A session that doesn't exist or a request
//	the daemon rejected is not an error, it is reported through the boolean result.
//
// Usage Example:
//
//	c, _ := client.NewSessionClient(common.ClientConfig{Endpoint: "@uniauth"}, unix.NewUnixClientTransport())
//	defer c.Close()
//
//	ok, err := c.Create(&store.SessionRecord{Key: []byte("abc"), Username: []byte("alice"), Expire: 1700000000})
//	rec, found, err := c.Lookup("abc")
//
// Thread Safety:
//
//	A SessionClient can be shared between goroutines, exchanges are serialized by
//	the transport. Use one client per goroutine for parallel requests.
package client
