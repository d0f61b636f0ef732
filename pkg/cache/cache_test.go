package cache

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Combine-Capital/rcache/pkg/config"
	"github.com/Combine-Capital/rcache/pkg/conn"
	"github.com/Combine-Capital/rcache/pkg/dispatch"
	"github.com/Combine-Capital/rcache/pkg/errors"
	"github.com/alicebob/miniredis/v2"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// setupTestCache creates a miniredis server and a client connected to it.
func setupTestCache(t *testing.T, opts ...Option) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := config.CacheConfig{
		ConnectionString: "redis://" + mr.Addr(),
		DialTimeout:      time.Second,
		ReadTimeout:      time.Second,
		WriteTimeout:     time.Second,
		PoolSize:         4,
		DefaultTTL:       5 * time.Minute,
	}

	c, err := NewFromConfig(cfg, nil, nil, opts...)
	if err != nil {
		t.Fatalf("Failed to create cache client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestClient_Strings(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		if err := c.SetString(ctx, "greeting", "hello", time.Minute); err != nil {
			t.Fatalf("SetString() error = %v", err)
		}
		got, err := c.GetString(ctx, "greeting")
		if err != nil {
			t.Fatalf("GetString() error = %v", err)
		}
		if got != "hello" {
			t.Errorf("GetString() = %q, want %q", got, "hello")
		}
		if ttl := mr.TTL("greeting"); ttl != time.Minute {
			t.Errorf("TTL = %v, want %v", ttl, time.Minute)
		}
	})

	t.Run("get missing key", func(t *testing.T) {
		_, err := c.GetString(ctx, "missing")
		if !errors.IsNotFound(err) {
			t.Errorf("Expected NotFound error, got: %v", err)
		}
	})

	t.Run("zero ttl does not expire", func(t *testing.T) {
		if err := c.SetString(ctx, "forever", "x", 0); err != nil {
			t.Fatalf("SetString() error = %v", err)
		}
		mr.FastForward(time.Hour)
		if _, err := c.GetString(ctx, "forever"); err != nil {
			t.Errorf("GetString() error = %v", err)
		}
	})

	t.Run("expired key", func(t *testing.T) {
		if err := c.SetString(ctx, "short", "x", time.Second); err != nil {
			t.Fatalf("SetString() error = %v", err)
		}
		mr.FastForward(2 * time.Second)
		if _, err := c.GetString(ctx, "short"); !errors.IsNotFound(err) {
			t.Errorf("Expected NotFound error for expired key, got: %v", err)
		}
	})

	t.Run("blank key", func(t *testing.T) {
		if err := c.SetString(ctx, " ", "x", 0); !errors.IsInvalidInput(err) {
			t.Errorf("Expected InvalidInput error, got: %v", err)
		}
	})
}

func TestClient_Add(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	added, err := c.Add(ctx, "lock", "owner-1", time.Minute)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !added {
		t.Error("Expected first Add to store the value")
	}

	added, err = c.Add(ctx, "lock", "owner-2", time.Minute)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if added {
		t.Error("Expected second Add not to store the value")
	}

	got, _ := c.GetString(ctx, "lock")
	if got != "owner-1" {
		t.Errorf("value = %q, want owner-1", got)
	}
}

func TestClient_DeleteAndExists(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	_ = mr.Set("present", "1")

	exists, err := c.Exists(ctx, "present")
	if err != nil || !exists {
		t.Fatalf("Exists() = %v, %v; want true, nil", exists, err)
	}

	deleted, err := c.Delete(ctx, "present")
	if err != nil || !deleted {
		t.Fatalf("Delete() = %v, %v; want true, nil", deleted, err)
	}

	deleted, err = c.Delete(ctx, "present")
	if err != nil || deleted {
		t.Errorf("second Delete() = %v, %v; want false, nil", deleted, err)
	}

	exists, err = c.Exists(ctx, "present")
	if err != nil || exists {
		t.Errorf("Exists() after delete = %v, %v; want false, nil", exists, err)
	}
}

func TestClient_Counters(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	n, err := c.Increment(ctx, "visits", 5)
	if err != nil || n != 5 {
		t.Fatalf("Increment() = %d, %v; want 5, nil", n, err)
	}
	n, err = c.Increment(ctx, "visits", 2)
	if err != nil || n != 7 {
		t.Fatalf("Increment() = %d, %v; want 7, nil", n, err)
	}
	n, err = c.Decrement(ctx, "visits", 10)
	if err != nil || n != -3 {
		t.Fatalf("Decrement() = %d, %v; want -3, nil", n, err)
	}

	// A non-integer value is a fatal server error and is not retried.
	_ = c.SetString(ctx, "text", "abc", 0)
	if _, err := c.Increment(ctx, "text", 1); err == nil {
		t.Error("Expected error incrementing a non-integer value")
	}
}

func TestClient_Typed(t *testing.T) {
	t.Run("json codec", func(t *testing.T) {
		c, mr := setupTestCache(t)
		ctx := context.Background()

		in := user{ID: "123", Name: "Ada", Age: 36}
		if err := c.Set(ctx, "user:123", in, 0); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if ttl := mr.TTL("user:123"); ttl != 5*time.Minute {
			t.Errorf("TTL = %v, want default 5m", ttl)
		}

		var out user
		if err := c.Get(ctx, "user:123", &out); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if out != in {
			t.Errorf("Get() = %+v, want %+v", out, in)
		}
	})

	t.Run("proto codec", func(t *testing.T) {
		c, _ := setupTestCache(t, WithCodec(ProtoCodec{}))
		ctx := context.Background()

		msg, err := structpb.NewStruct(map[string]any{"id": "test-123", "value": 42})
		if err != nil {
			t.Fatalf("NewStruct() error = %v", err)
		}
		if err := c.Set(ctx, "msg", msg, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		var out structpb.Struct
		if err := c.Get(ctx, "msg", &out); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if out.Fields["id"].GetStringValue() != "test-123" {
			t.Errorf("id = %q, want test-123", out.Fields["id"].GetStringValue())
		}
		if out.Fields["value"].GetNumberValue() != 42 {
			t.Errorf("value = %v, want 42", out.Fields["value"].GetNumberValue())
		}

		if err := c.Set(ctx, "bad", user{}, 0); !errors.IsPermanent(err) {
			t.Errorf("Expected permanent error for non-proto value, got: %v", err)
		}
	})

	t.Run("undecodable value", func(t *testing.T) {
		c, mr := setupTestCache(t)
		_ = mr.Set("garbage", "{not json")

		var out user
		if err := c.Get(context.Background(), "garbage", &out); !errors.IsPermanent(err) {
			t.Errorf("Expected permanent error, got: %v", err)
		}
	})
}

func TestClient_GetOrLoad(t *testing.T) {
	c, mr := setupTestCache(t, WithCodec(ProtoCodec{}))
	ctx := context.Background()

	var loads atomic.Int32
	loader := func(context.Context) (any, error) {
		loads.Add(1)
		time.Sleep(20 * time.Millisecond)
		return wrapperspb.String("loaded"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out wrapperspb.StringValue
			if err := c.GetOrLoad(ctx, "lazy", &out, time.Minute, loader); err != nil {
				t.Errorf("GetOrLoad() error = %v", err)
				return
			}
			if out.GetValue() != "loaded" {
				t.Errorf("GetOrLoad() = %q, want loaded", out.GetValue())
			}
		}()
	}
	wg.Wait()

	if loads.Load() != 1 {
		t.Errorf("Expected loader to run once, ran %d times", loads.Load())
	}
	if !mr.Exists("lazy") {
		t.Error("Expected loaded value to be cached")
	}

	// Served from cache now.
	var out wrapperspb.StringValue
	if err := c.GetOrLoad(ctx, "lazy", &out, time.Minute, loader); err != nil {
		t.Fatalf("GetOrLoad() error = %v", err)
	}
	if loads.Load() != 1 {
		t.Errorf("Expected cache hit, loader ran %d times", loads.Load())
	}

	loadErr := stderrors.New("database down")
	err := c.GetOrLoad(ctx, "failing", &out, time.Minute, func(context.Context) (any, error) {
		return nil, loadErr
	})
	if !stderrors.Is(err, loadErr) {
		t.Errorf("Expected loader error, got: %v", err)
	}
}

func TestClient_KeyPrefix(t *testing.T) {
	c, mr := setupTestCache(t, WithKeyPrefix("svc"))
	ctx := context.Background()

	if err := c.SetString(ctx, Key("user", "1"), "x", 0); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}
	if !mr.Exists("svc:user:1") {
		t.Errorf("Expected prefixed key, keys = %v", mr.Keys())
	}
}

func TestClient_FireAndForget(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())

	n, err := c.FireAndForget().Increment(ctx, "hits", 3)
	if err != nil || n != 0 {
		t.Fatalf("Increment() = %d, %v; want placeholder 0, nil", n, err)
	}
	// Canceling the caller does not cancel the background call.
	cancel()

	c.bg.pending.Wait()
	if got, _ := mr.Get("hits"); got != "3" {
		t.Errorf("hits = %q, want 3", got)
	}

	if _, err := c.FireAndForget().Delete(ctx, ""); !errors.IsInvalidInput(err) {
		t.Errorf("Expected validation error to be returned, got: %v", err)
	}
}

func TestClient_FireAndForgetAfterClose(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := c.FireAndForget().SetString(ctx, "late", "v", 0); !stderrors.Is(err, ErrClientClosed) {
		t.Errorf("Expected ErrClientClosed, got: %v", err)
	}
	if mr.Exists("late") {
		t.Error("Expected no write after Close")
	}
}

func TestClient_GetOrLoadSurvivesLeaderCancel(t *testing.T) {
	c, _ := setupTestCache(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var loads atomic.Int32
	loader := func(ctx context.Context) (any, error) {
		if loads.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return "loaded", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		var out string
		leaderErr <- c.GetOrLoad(leaderCtx, "shared", &out, time.Minute, loader)
	}()
	<-started

	followerErr := make(chan error, 1)
	var followerOut string
	go func() {
		followerErr <- c.GetOrLoad(context.Background(), "shared", &followerOut, time.Minute, loader)
	}()
	// Let the follower join the in-flight load.
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	if err := <-leaderErr; !stderrors.Is(err, context.Canceled) {
		t.Errorf("leader error = %v, want context.Canceled", err)
	}

	close(release)
	if err := <-followerErr; err != nil {
		t.Fatalf("follower error = %v", err)
	}
	if followerOut != "loaded" {
		t.Errorf("follower value = %q, want loaded", followerOut)
	}
	if n := loads.Load(); n != 1 {
		t.Errorf("Expected loader to run once, ran %d times", n)
	}
}

func TestClient_RecoversAfterServerRestart(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	if err := c.SetString(ctx, "k", "v", 0); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}

	mr.Close()
	if err := mr.Restart(); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	_ = mr.Set("k", "v2")

	// Pooled sockets are dead after the restart; the call is retried.
	got, err := c.GetString(ctx, "k")
	if err != nil {
		t.Fatalf("GetString() after restart error = %v", err)
	}
	if got != "v2" {
		t.Errorf("GetString() = %q, want v2", got)
	}
}

func TestClient_ServerDownSurfacesOriginalError(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	manager := conn.NewManager(conn.WithDialer(conn.NewRedisDialer(config.CacheConfig{DialTimeout: 50 * time.Millisecond})))
	if err := manager.InitializeConnectionString("redis://" + addr); err != nil {
		t.Fatalf("InitializeConnectionString() error = %v", err)
	}
	c := New(manager, dispatch.New(manager, dispatch.WithMaxAttempts(2)))
	defer c.Close()

	_, err := c.GetString(context.Background(), "k")
	if !errors.IsConnection(err) {
		t.Errorf("Expected connection error, got: %v", err)
	}
}

func TestClient_CheckHealth(t *testing.T) {
	c, mr := setupTestCache(t)

	if err := CheckHealthWithTimeout(context.Background(), c, time.Second); err != nil {
		t.Errorf("CheckHealth() error = %v", err)
	}

	mr.SetError("LOADING server is loading")
	defer mr.SetError("")

	err := c.Check(context.Background())
	if !errors.IsTemporary(err) {
		t.Errorf("Expected temporary error, got: %v", err)
	}
}

func TestClient_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	c, _ := setupTestCache(t)
	ctx := context.Background()

	_ = c.SetString(ctx, "k", "v", 0)
	_, _ = c.GetString(ctx, "missing")

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("Expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "cache.set" || spans[1].Name() != "cache.get" {
		t.Errorf("span names = %q, %q", spans[0].Name(), spans[1].Name())
	}
	// A miss is not an error.
	if len(spans[1].Events()) != 0 {
		t.Errorf("Expected no error event on cache miss, got %d events", len(spans[1].Events()))
	}

	attrs := map[string]any{}
	for _, a := range spans[1].Attributes() {
		attrs[string(a.Key)] = a.Value.AsInterface()
	}
	if attrs["cache.system"] != "redis" || attrs["cache.key"] != "missing" {
		t.Errorf("unexpected span attributes %v", attrs)
	}
	if hit, ok := attrs["cache.hit"]; !ok || hit != false {
		t.Errorf("cache.hit = %v, want false", hit)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		prefix string
		parts  []string
		want   string
	}{
		{"user", []string{"123"}, "user:123"},
		{"portfolio", []string{"abc", "stats"}, "portfolio:abc:stats"},
		{"", []string{"a", "", "b"}, "a:b"},
		{"only", nil, "only"},
	}

	for _, tt := range tests {
		if got := Key(tt.prefix, tt.parts...); got != tt.want {
			t.Errorf("Key(%q, %v) = %q, want %q", tt.prefix, tt.parts, got, tt.want)
		}
	}
}
