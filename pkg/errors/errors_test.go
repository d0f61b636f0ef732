package errors

import (
	"errors"
	"testing"
)

// TestErrorTypes verifies all error types are created correctly and implement error interface
func TestErrorTypes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "PermanentError without cause",
			err:  NewPermanent("permanent failure", nil),
			want: "permanent failure",
		},
		{
			name: "PermanentError with cause",
			err:  NewPermanent("permanent failure", errors.New("root cause")),
			want: "permanent failure: root cause",
		},
		{
			name: "TemporaryError with cause",
			err:  NewTemporary("temporary failure", errors.New("timeout")),
			want: "temporary failure: timeout",
		},
		{
			name: "NotFoundError",
			err:  NewNotFound("cache key", "user:1"),
			want: "cache key not found: user:1",
		},
		{
			name: "InvalidInputError",
			err:  NewInvalidInput("key", "must not be empty"),
			want: "invalid input for key: must not be empty",
		},
		{
			name: "ConfigurationError",
			err:  NewConfiguration("connection_string", "must not be blank"),
			want: "configuration error for connection_string: must not be blank",
		},
		{
			name: "ConnectionError with cause",
			err:  NewConnection("failed to connect to Redis", errors.New("connection refused")),
			want: "failed to connect to Redis: connection refused",
		},
		{
			name: "DisposedError without cause",
			err:  NewDisposed(nil),
			want: "connection handle disposed",
		},
		{
			name: "DisposedError with cause",
			err:  NewDisposed(errors.New("redis: client is closed")),
			want: "connection handle disposed: redis: client is closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestErrorUnwrap verifies error unwrapping works correctly
func TestErrorUnwrap(t *testing.T) {
	rootErr := errors.New("root cause")

	tests := []struct {
		name string
		err  error
	}{
		{name: "PermanentError unwraps", err: NewPermanent("wrapper", rootErr)},
		{name: "TemporaryError unwraps", err: NewTemporary("wrapper", rootErr)},
		{name: "NotFoundError unwraps", err: NewNotFoundWithCause("key", "123", rootErr)},
		{name: "InvalidInputError unwraps", err: NewInvalidInputWithCause("field", "msg", rootErr)},
		{name: "ConnectionError unwraps", err: NewConnection("wrapper", rootErr)},
		{name: "DisposedError unwraps", err: NewDisposed(rootErr)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Unwrap(tt.err); got != rootErr {
				t.Errorf("Unwrap() = %v, want %v", got, rootErr)
			}
		})
	}
}

// TestTypeChecking verifies type checking functions work correctly
func TestTypeChecking(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		isPerm   bool
		isTemp   bool
		isNotF   bool
		isConfig bool
		isConn   bool
		isDisp   bool
	}{
		{name: "PermanentError", err: NewPermanent("perm", nil), isPerm: true},
		{name: "TemporaryError", err: NewTemporary("temp", nil), isTemp: true},
		{name: "NotFoundError", err: NewNotFound("key", "123"), isNotF: true},
		{name: "ConfigurationError", err: NewConfiguration("x", "y"), isConfig: true},
		{name: "ConnectionError", err: NewConnection("conn", nil), isConn: true},
		{name: "DisposedError", err: NewDisposed(nil), isDisp: true},
		{name: "ErrDisposed sentinel", err: ErrDisposed, isDisp: true},
		{name: "standard error is none", err: errors.New("standard")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.isPerm {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.isPerm)
			}
			if got := IsTemporary(tt.err); got != tt.isTemp {
				t.Errorf("IsTemporary() = %v, want %v", got, tt.isTemp)
			}
			if got := IsNotFound(tt.err); got != tt.isNotF {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.isNotF)
			}
			if got := IsConfiguration(tt.err); got != tt.isConfig {
				t.Errorf("IsConfiguration() = %v, want %v", got, tt.isConfig)
			}
			if got := IsConnection(tt.err); got != tt.isConn {
				t.Errorf("IsConnection() = %v, want %v", got, tt.isConn)
			}
			if got := IsDisposed(tt.err); got != tt.isDisp {
				t.Errorf("IsDisposed() = %v, want %v", got, tt.isDisp)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{name: "nil", err: nil, want: KindNone},
		{name: "connection", err: NewConnection("dial", errors.New("refused")), want: KindConnection},
		{name: "disposed", err: NewDisposed(nil), want: KindDisposed},
		{name: "wrapped disposed", err: Wrap(ErrDisposed, "get"), want: KindDisposed},
		{name: "configuration is fatal", err: NewConfiguration("connection_string", "blank"), want: KindFatal},
		{name: "temporary is fatal", err: NewTemporary("later", nil), want: KindFatal},
		{name: "plain error is fatal", err: errors.New("boom"), want: KindFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFailureKindString(t *testing.T) {
	want := map[FailureKind]string{
		KindNone:        "none",
		KindConnection:  "connection",
		KindDisposed:    "disposed",
		KindFatal:       "fatal",
		FailureKind(42): "unknown",
	}
	for kind, s := range want {
		if kind.String() != s {
			t.Errorf("FailureKind(%d).String() = %q, want %q", int(kind), kind.String(), s)
		}
	}

	if !KindConnection.Retryable() || !KindDisposed.Retryable() {
		t.Error("connection and disposed kinds must be retryable")
	}
	if KindFatal.Retryable() || KindNone.Retryable() {
		t.Error("fatal and none kinds must not be retryable")
	}
}

// TestWrapping verifies error wrapping preserves types
func TestWrapping(t *testing.T) {
	tests := []struct {
		name      string
		original  error
		checkType func(error) bool
		wantMsg   string
	}{
		{
			name:      "wrap PermanentError",
			original:  NewPermanent("original", nil),
			checkType: IsPermanent,
			wantMsg:   "context: original",
		},
		{
			name:      "wrap ConnectionError",
			original:  NewConnection("dial failed", nil),
			checkType: IsConnection,
			wantMsg:   "context: dial failed",
		},
		{
			name:      "wrap ConfigurationError",
			original:  NewConfiguration("connection_string", "blank"),
			checkType: IsConfiguration,
			wantMsg:   "configuration error for connection_string: context: blank",
		},
		{
			name:      "wrap disposed",
			original:  ErrDisposed,
			checkType: IsDisposed,
			wantMsg:   "context: connection handle disposed",
		},
		{
			name:      "wrap standard error becomes permanent",
			original:  errors.New("standard"),
			checkType: IsPermanent,
			wantMsg:   "context: standard",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := Wrap(tt.original, "context")
			if !tt.checkType(wrapped) {
				t.Errorf("Wrap() lost error type for %v", wrapped)
			}
			if wrapped.Error() != tt.wantMsg {
				t.Errorf("Wrap() = %q, want %q", wrapped.Error(), tt.wantMsg)
			}
		})
	}
}

func TestWrapf(t *testing.T) {
	err := Wrapf(NewConnection("reset", nil), "get %s", "user:1")
	if !IsConnection(err) {
		t.Errorf("expected connection error, got %T", err)
	}
	if err.Error() != "get user:1: reset" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}

func TestNotFoundErrorFields(t *testing.T) {
	err := NewNotFound("cache key", "user:1")
	var nfe *NotFoundError
	if !As(err, &nfe) {
		t.Fatal("expected NotFoundError")
	}
	if nfe.Resource() != "cache key" || nfe.ID() != "user:1" {
		t.Errorf("unexpected fields: %s %s", nfe.Resource(), nfe.ID())
	}
}

func TestConfigurationErrorSetting(t *testing.T) {
	err := Wrap(NewConfiguration("connection_string", "blank"), "init")
	var cerr *ConfigurationError
	if !As(err, &cerr) {
		t.Fatal("expected ConfigurationError")
	}
	if cerr.Setting() != "connection_string" {
		t.Errorf("Setting() = %q", cerr.Setting())
	}
}
