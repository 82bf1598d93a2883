package server

import (
	"errors"

	"github.com/jdhagood/go-ledwall-server/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrListen   = errors.New("listen")
	ErrAccept   = errors.New("accept")
	ErrConnRead = errors.New("conn_read")
	ErrRecv     = errors.New("datagram_recv")
	ErrContext  = errors.New("context_cancelled")
)

// mapErrToMetric maps wrapped sentinel errors to metrics labels.
func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrRecv):
		return metrics.ErrUDPRead
	case errors.Is(err, ErrConnRead):
		return metrics.ErrTCPRead
	case errors.Is(err, ErrAccept):
		return metrics.ErrTCPAccept
	case errors.Is(err, ErrListen):
		return metrics.ErrListen
	case errors.Is(err, ErrContext):
		return "context"
	default:
		return "other"
	}
}
