package xclaim

import (
	"github.com/trickstertwo/xlog"
)

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(e TraceEvent)

func (f ObserverFunc) OnEvent(e TraceEvent) { f(e) }

// LoggingObserver is an Adapter that emits client events via xlog. It is
// attached automatically when tracing is enabled.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnEvent(e TraceEvent) {
	if o.Logger == nil {
		return
	}
	ev := o.Logger.With(
		xlog.Str("type", string(e.Type)),
		xlog.Str("queue", e.Queue),
		xlog.Str("message_id", e.MessageID),
	)
	if e.BlobName != "" {
		ev = ev.With(xlog.Str("blob", e.BlobName))
	}
	if e.Duration > 0 {
		ev = ev.With(xlog.Dur("duration", e.Duration))
	}
	switch e.Type {
	case Error, Rollback, DeadLetter:
		ev.Warn().Err(e.Err).Msg("xclaim event")
	default:
		ev.Debug().Err(e.Err).Msg("xclaim event")
	}
}
