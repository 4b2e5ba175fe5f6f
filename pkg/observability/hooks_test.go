package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	r := NoopResolverHooks{}
	r.OnResolveStart(ctx, 3)
	r.OnPin(ctx, "requests", "2.31.0", 1)
	r.OnBackjump(ctx, 5, 2, []string{"urllib3"})
	r.OnResolveComplete(ctx, 10, 42, time.Second, nil)

	f := NoopFetchHooks{}
	f.OnFetchStart(ctx, "versions", "requests")
	f.OnFetchComplete(ctx, "versions", "requests", time.Second, nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "metadata")
	c.OnCacheMiss(ctx, "metadata")
	c.OnCacheSet(ctx, "metadata", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "pypi.org", "/pypi/requests/json")
	h.OnResponse(ctx, "GET", "pypi.org", "/pypi/requests/json", 200, time.Second)
	h.OnError(ctx, "GET", "pypi.org", "/pypi/requests/json", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Resolver().(NoopResolverHooks); !ok {
		t.Error("Resolver() should return NoopResolverHooks by default")
	}
	if _, ok := Fetch().(NoopFetchHooks); !ok {
		t.Error("Fetch() should return NoopFetchHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customResolver := &testResolverHooks{}
	SetResolverHooks(customResolver)
	if Resolver() != customResolver {
		t.Error("SetResolverHooks should set custom hooks")
	}

	customFetch := &testFetchHooks{}
	SetFetchHooks(customFetch)
	if Fetch() != customFetch {
		t.Error("SetFetchHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Resolver().(NoopResolverHooks); !ok {
		t.Error("Reset() should restore NoopResolverHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testResolverHooks{}
	SetResolverHooks(custom)
	SetResolverHooks(nil)

	if Resolver() != custom {
		t.Error("SetResolverHooks(nil) should be ignored")
	}
}

type testResolverHooks struct{ NoopResolverHooks }
type testFetchHooks struct{ NoopFetchHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
