package relay

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/livechat-bridge/pkg/logger"
	"github.com/lewisedginton/livechat-bridge/pkg/metrics"
)

// CloseAllRooms closes every open livechat room. A failure on one room does
// not stop the sweep; errors are collected and local state is cleared either
// way so the bridge never holds a reference to a room it tried to close.
func (b *Bridge) CloseAllRooms(ctx context.Context) (int, error) {
	var errs *multierror.Error
	closed := 0

	for _, rec := range b.store.OpenRooms() {
		b.watchdog.Stop(rec.UserID)

		if err := b.client.CloseRoom(ctx, rec.VisitorToken, rec.LiveChatRoomID); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("room %s (user %s): %w", rec.LiveChatRoomID, rec.UserID, err))
		} else {
			closed++
		}

		if _, cleared := b.store.ClearRoom(rec.UserID); cleared {
			b.metrics.RoomsClosed.WithLabelValues(metrics.CloseReasonAdmin).Inc()
			b.metrics.OpenRooms.Dec()
		}
	}

	return closed, errs.ErrorOrNil()
}

// HandleCloseAll is the HTTP handler for the administrative close-all
// endpoint.
func (b *Bridge) HandleCloseAll(w http.ResponseWriter, r *http.Request) {
	log := b.log.WithCorrelationID(logger.GetCorrelationIDFromContext(r.Context()))

	closed, err := b.CloseAllRooms(r.Context())
	if err != nil {
		log.Error("Close-all sweep finished with failures",
			logger.IntField("closed", closed),
			logger.ErrorField(err))
		http.Error(w, "Failed to close all live chat rooms.", http.StatusInternalServerError)
		return
	}

	log.Info("Closed all livechat rooms", logger.IntField("closed", closed))
	fmt.Fprintf(w, "Closed %d live chat room(s).", closed)
}
