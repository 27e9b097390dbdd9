package server

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/uniauth/lib/store"
	"github.com/ValentinKolb/uniauth/rpc/common"
	"github.com/ValentinKolb/uniauth/rpc/serializer"
	"github.com/ValentinKolb/uniauth/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
)

const (
	// respOK is the text of every successful create, commit and transfer
	respOK = "ok"
	// respNotFound is the text sent when a lookup misses
	respNotFound = "not found"
)

func NewSessionServerAdapter() IRPCServerAdapter {
	return &sessionServerAdapterImpl{}
}

type sessionServerAdapterImpl struct{}

func (adapter *sessionServerAdapterImpl) Handle(req *serializer.Request, resp transport.IResponder, store store.ISessionStore) {
	countRequest(req.Op)

	// Check for nil store
	if store == nil {
		sendError(resp, "handler: store is nil")
		return
	}

	// Handle different request types
	switch req.Op {
	case common.OpLookup:
		rec, found, err := store.Lookup(string(req.Record.Key))
		switch {
		case err != nil:
			sendError(resp, errorText(err))
		case !found:
			sendError(resp, respNotFound)
		default:
			// rec is a copy owned by us, its key doesn't alias the connection buffer
			countResponse(common.RespRecord)
			if err := resp.SendRecord(rec.Key, &rec); err != nil {
				Logger.Debugf("Failed to send record: %v", err)
			}
		}
	case common.OpCreate:
		sendResult(resp, store.Create(req.Record))
	case common.OpCommit:
		sendResult(resp, store.Commit(req.Record))
	case common.OpTransfer:
		sendResult(resp, store.Transfer(string(req.TransferSrc), string(req.TransferDst)))
	default:
		sendError(resp, fmt.Sprintf("unsupported operation: %s", req.Op))
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// sendResult answers with "ok" on success, otherwise with the error text
func sendResult(resp transport.IResponder, err error) {
	if err != nil {
		sendError(resp, errorText(err))
		return
	}
	countResponse(common.RespMessage)
	if err := resp.SendMessage(respOK); err != nil {
		Logger.Debugf("Failed to send message: %v", err)
	}
}

func sendError(resp transport.IResponder, text string) {
	countResponse(common.RespError)
	if err := resp.SendError(text); err != nil {
		Logger.Debugf("Failed to send error: %v", err)
	}
}

// errorText returns the message of store errors and the full text of all others
func errorText(err error) string {
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return storeErr.Msg
	}
	Logger.Errorf("Store failure: %v", err)
	return err.Error()
}

func countRequest(op common.Opcode) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`uniauth_requests_total{op=%q}`, op.String())).Inc()
}

func countResponse(kind common.ResponseKind) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`uniauth_responses_total{kind=%q}`, kind.String())).Inc()
}
