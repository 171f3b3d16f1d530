package server

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/store"
	"github.com/ValentinKolb/walkv/rpc/common"
	"github.com/ValentinKolb/walkv/rpc/transport"
)

// NewStoreHandler creates the transport.Handler executing commands on s.
// onShutdown is called once after a Shutdown command drained the store.
func NewStoreHandler(s store.IStore, onShutdown func()) transport.Handler {
	return &storeHandler{
		store:      s,
		onShutdown: onShutdown,
	}
}

type storeHandler struct {
	store      store.IStore
	onShutdown func()
	shutdown   atomic.Bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.Handler)
// --------------------------------------------------------------------------

func (h *storeHandler) Execute(ctx context.Context, cmd command.Command) (common.Response, error) {
	switch c := cmd.(type) {
	case command.Put:
		return ok(), h.store.Submit(ctx, c)
	case command.Delete:
		return ok(), h.store.Submit(ctx, c)
	case command.Get:
		value, err := h.store.Get(c.Key)
		if errors.Is(err, store.ErrKeyNotFound) {
			return common.Response{}, store.NewError(store.RetCKeyNotFound, fmt.Sprintf("key %s not found", c.Key))
		} else if err != nil {
			return common.Response{}, err
		}
		return common.Response{Kind: common.KindValue, Value: value}, nil
	case command.Range:
		return common.Response{Kind: common.KindPairs, Pairs: h.store.Range(c.Start, c.End)}, nil
	case command.Keys:
		return common.Response{Kind: common.KindList, Items: h.store.Keys(c.Needle)}, nil
	case command.Values:
		return common.Response{Kind: common.KindList, Items: h.store.Values(c.Needle)}, nil
	case command.Amount:
		return common.Response{Kind: common.KindCount, Count: h.store.Amount()}, nil
	case command.DumpAll:
		return common.Response{Kind: common.KindPairs, Pairs: h.store.DumpAll()}, nil
	case command.Shutdown:
		return ok(), h.handleShutdown()
	default:
		return common.Response{}, store.NewError(store.RetCInvalidCommand, fmt.Sprintf("unsupported command %v", cmd))
	}
}

func (h *storeHandler) Info() db.DatabaseInfo {
	return h.store.GetDBInfo()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleShutdown stops the store, waits until every accepted mutation is
// durable and notifies the server. Repeated shutdowns only wait for the
// store again.
func (h *storeHandler) handleShutdown() error {
	first := h.shutdown.CompareAndSwap(false, true)
	if first {
		Logger.Infof("Shutdown requested, draining the store")
	}

	err := h.store.Close()

	if first && h.onShutdown != nil {
		h.onShutdown()
	}
	return err
}

func ok() common.Response {
	return common.Response{Kind: common.KindOK}
}
