package player

import (
	"context"
	"errors"
	"time"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/metrics"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/model"
)

var errStreamClosed = errors.New("stream closed")

// superviseChannel keeps the live-update stream open, reopening it after a
// fixed delay whenever it drops. Missed notifications are covered by the
// periodic poll and by the resync that every "connected" event triggers.
func (o *Orchestrator) superviseChannel(ctx context.Context) {
	for {
		stream, err := o.channel.Subscribe(ctx, o.cfg.DisplayID)
		if err != nil {
			o.channelDown(err)
		} else {
			o.logger.Info().Msg("live-update channel open")
			if !o.forward(ctx, stream) {
				return
			}
			o.channelDown(nil)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(o.cfg.ReconnectDelay):
			metrics.ChannelReconnectsTotal.Inc()
		}
	}
}

// forward copies stream into the loop until the stream closes. It returns
// false when ctx ended first.
func (o *Orchestrator) forward(ctx context.Context, stream <-chan model.Event) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-stream:
			if !ok {
				return true
			}
			if ev.ReceivedAt.IsZero() {
				ev.ReceivedAt = o.now()
			}
			select {
			case o.events <- ev:
			case <-ctx.Done():
				return false
			}
		}
	}
}

func (o *Orchestrator) channelDown(cause error) {
	err := &ChannelDisconnected{Err: cause}
	if cause == nil {
		err.Err = errStreamClosed
	}
	metrics.ErrorsTotal.WithLabelValues(errorKind(err)).Inc()
	o.logger.Warn().Err(err).Dur("retry_in", o.cfg.ReconnectDelay).Msg("live-update channel down")
}
