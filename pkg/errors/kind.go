package errors

// FailureKind tags the outcome of one attempt of a cache call. The dispatcher
// switches on the kind rather than on concrete error types.
type FailureKind int

const (
	// KindNone means the attempt succeeded.
	KindNone FailureKind = iota
	// KindConnection is a connection or socket failure. Retried, and a
	// reconnect is requested.
	KindConnection
	// KindDisposed means the handle was closed underneath the call by a
	// reconnect elsewhere. Retried without requesting a reconnect.
	KindDisposed
	// KindFatal is anything else. Never retried.
	KindFatal
)

// String returns the lower-case name used in logs and metric labels.
func (k FailureKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConnection:
		return "connection"
	case KindDisposed:
		return "disposed"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Retryable reports whether the dispatcher retries failures of this kind.
func (k FailureKind) Retryable() bool {
	return k == KindConnection || k == KindDisposed
}

// KindOf classifies errors built from this package. Driver errors are
// classified by conn.Classify, which falls back to KindOf.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return KindNone
	case IsDisposed(err):
		return KindDisposed
	case IsConnection(err):
		return KindConnection
	default:
		return KindFatal
	}
}
