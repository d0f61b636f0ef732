package conn

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/Combine-Capital/rcache/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// transientReplies are server replies that mean the node cannot serve
// right now, as opposed to a problem with the command itself.
var transientReplies = []string{"LOADING ", "READONLY ", "MASTERDOWN ", "TRYAGAIN ", "CLUSTERDOWN "}

// Classify maps an error returned by go-redis, the network stack, or this
// module onto a FailureKind.
//
// Caller cancellation is always fatal so that a done context is never retried.
func Classify(err error) errors.FailureKind {
	switch {
	case err == nil:
		return errors.KindNone
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.KindFatal
	case stderrors.Is(err, ErrManagerClosed):
		return errors.KindFatal
	case stderrors.Is(err, redis.ErrClosed):
		return errors.KindDisposed
	case errors.IsConfiguration(err):
		return errors.KindFatal
	case errors.KindOf(err).Retryable():
		return errors.KindOf(err)
	case isSocketError(err):
		return errors.KindConnection
	case isTransientReply(err):
		return errors.KindConnection
	default:
		return errors.KindFatal
	}
}

func isSocketError(err error) bool {
	if stderrors.Is(err, redis.ErrPoolTimeout) {
		return true
	}
	if stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) || stderrors.Is(err, net.ErrClosed) {
		return true
	}
	if stderrors.Is(err, syscall.ECONNRESET) ||
		stderrors.Is(err, syscall.ECONNREFUSED) ||
		stderrors.Is(err, syscall.ECONNABORTED) ||
		stderrors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr)
}

func isTransientReply(err error) bool {
	var reply redis.Error
	if !stderrors.As(err, &reply) {
		return false
	}
	msg := reply.Error()
	for _, prefix := range transientReplies {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
