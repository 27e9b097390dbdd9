package client

import (
	"fmt"

	"github.com/ValentinKolb/uniauth/rpc/common"
	"github.com/ValentinKolb/uniauth/rpc/serializer"
	"github.com/ValentinKolb/uniauth/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")
)

// rpcClientAdapter stores all data needed by an RPC client implementation
type rpcClientAdapter struct {
	config    common.ClientConfig
	transport transport.IRPCClientTransport
}

// invokeRPCRequest encodes the request, sends it and decodes the response.
//
// Errors returned by this function are fatal for the request: the request could
// not be encoded, the daemon could not be reached or it answered with a malformed
// message. The returned response shares no memory with the transport.
func invokeRPCRequest(req *serializer.Request, t transport.IRPCClientTransport) (*serializer.Response, error) {
	// Build the complete message first, nothing is sent if it doesn't fit
	var buf [common.MaxMessageSize]byte
	n, err := serializer.EncodeRequest(buf[:], req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", req.Op, err)
	}

	resp := &serializer.Response{}
	err = t.Send(buf[:n], func(data []byte) (bool, error) {
		switch serializer.DecodeResponse(data, resp) {
		case serializer.ResultOK:
			// the transport reuses its buffer after Send returns
			resp.Text = append([]byte(nil), resp.Text...)
			resp.Record = resp.Record.Clone()
			return true, nil
		case serializer.ResultError:
			return false, fmt.Errorf("server message incorrectly formatted")
		default:
			return false, nil
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", req.Op, err)
	}

	return resp, nil
}
