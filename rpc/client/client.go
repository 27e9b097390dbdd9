package client

import (
	"github.com/ValentinKolb/uniauth/lib/store"
	"github.com/ValentinKolb/uniauth/rpc/common"
	"github.com/ValentinKolb/uniauth/rpc/serializer"
	"github.com/ValentinKolb/uniauth/rpc/transport"
)

// SessionClient talks to the uniauth daemon. It owns one transport and with it
// one cached connection that is established lazily and replaced when stale.
//
// Every method returns a non-nil error only for fatal conditions (the request
// could not be encoded or sent, or the daemon answered with garbage). A lookup
// miss or a rejected create, commit or transfer is reported via the boolean.
type SessionClient struct {
	rpcClientAdapter
}

// NewSessionClient creates a new session client
// The function takes a config and a transport as parameters
func NewSessionClient(config common.ClientConfig, transport transport.IRPCClientTransport) (*SessionClient, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	return &SessionClient{
		rpcClientAdapter{
			config:    config,
			transport: transport,
		},
	}, nil
}

// Lookup fetches the session stored under key. found is false if the daemon has
// no such session.
func (c *SessionClient) Lookup(key string) (rec store.SessionRecord, found bool, err error) {
	req := &serializer.Request{
		Op:     common.OpLookup,
		Record: store.SessionRecord{Key: []byte(key)},
	}

	resp, err := invokeRPCRequest(req, c.transport)
	if err != nil {
		return store.SessionRecord{}, false, err
	}

	// Any text response means the record was not found
	if resp.Kind != common.RespRecord {
		Logger.Debugf("Lookup of %q: %s %q", key, resp.Kind, resp.Text)
		return store.SessionRecord{}, false, nil
	}
	return resp.Record, true, nil
}

// Create stores a new session. ok is false if the daemon rejected it (e.g. the
// key is already in use).
func (c *SessionClient) Create(rec *store.SessionRecord) (ok bool, err error) {
	return c.invokeRecord(common.OpCreate, rec)
}

// Commit updates an existing session with every field present in rec.
func (c *SessionClient) Commit(rec *store.SessionRecord) (ok bool, err error) {
	return c.invokeRecord(common.OpCommit, rec)
}

// Transfer copies the identity of the session src into the session dst.
func (c *SessionClient) Transfer(src, dst string) (ok bool, err error) {
	req := &serializer.Request{
		Op:          common.OpTransfer,
		TransferSrc: []byte(src),
		TransferDst: []byte(dst),
	}
	return c.invokeExpectMessage(req)
}

// Close closes the connection to the daemon.
func (c *SessionClient) Close() error {
	return c.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (c *SessionClient) invokeRecord(op common.Opcode, rec *store.SessionRecord) (bool, error) {
	return c.invokeExpectMessage(&serializer.Request{Op: op, Record: *rec})
}

// invokeExpectMessage sends req and reports success if the daemon answers with a message
func (c *SessionClient) invokeExpectMessage(req *serializer.Request) (bool, error) {
	resp, err := invokeRPCRequest(req, c.transport)
	if err != nil {
		return false, err
	}

	if resp.Kind != common.RespMessage {
		Logger.Debugf("%s rejected: %s %q", req.Op, resp.Kind, resp.Text)
		return false, nil
	}
	return true, nil
}
