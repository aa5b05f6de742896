package model

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/componentry/componentd/internal/events"
	"github.com/componentry/componentd/internal/resolver"
	"github.com/componentry/componentd/internal/resolver/static"
	"github.com/componentry/componentd/internal/runner"
	"github.com/componentry/componentd/internal/shared/decl"
)

// recorder collects ordered observations from fakes and hooks.
type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

// index returns the position of the first occurrence of s, -1 if absent.
func (r *recorder) index(s string) int {
	for i, e := range r.list() {
		if e == s {
			return i
		}
	}
	return -1
}

// countingResolver wraps a static resolver and counts calls per URL.
type countingResolver struct {
	inner *static.Resolver

	mu    sync.Mutex
	calls map[string]int
}

func newCountingResolver() *countingResolver {
	return &countingResolver{inner: static.New(), calls: make(map[string]int)}
}

func (c *countingResolver) add(url string, d *decl.Component) {
	c.inner.MustAdd(url, d)
}

func (c *countingResolver) count(url string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[url]
}

func (c *countingResolver) Resolve(ctx context.Context, url string) (*decl.Component, error) {
	c.mu.Lock()
	c.calls[url]++
	c.mu.Unlock()
	return c.inner.Resolve(ctx, url)
}

// fakeRunner launches fake programs and records start order.
type fakeRunner struct {
	rec *recorder

	mu          sync.Mutex
	starts      int
	controllers map[string]*fakeController
	infos       map[string]runner.StartInfo
	failFor     map[string]error
}

func newFakeRunner(rec *recorder) *fakeRunner {
	return &fakeRunner{
		rec:         rec,
		controllers: make(map[string]*fakeController),
		infos:       make(map[string]runner.StartInfo),
		failFor:     make(map[string]error),
	}
}

func (f *fakeRunner) Start(ctx context.Context, info runner.StartInfo) (runner.Controller, error) {
	f.mu.Lock()
	err := f.failFor[info.Moniker]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	f.rec.add("start:" + info.Moniker)
	c := &fakeController{rec: f.rec, moniker: info.Moniker, done: make(chan struct{})}
	f.mu.Lock()
	f.starts++
	f.controllers[info.Moniker] = c
	f.infos[info.Moniker] = info
	f.mu.Unlock()
	return c, nil
}

func (f *fakeRunner) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *fakeRunner) startInfo(mon string) (runner.StartInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.infos[mon]
	return info, ok
}

// fakeController terminates immediately on Stop and serves outgoing
// capability opens by recording them.
type fakeController struct {
	rec     *recorder
	moniker string
	done    chan struct{}
	once    sync.Once
}

func (c *fakeController) Stop(ctx context.Context) error {
	c.once.Do(func() {
		c.rec.add("stop:" + c.moniker)
		close(c.done)
	})
	return nil
}

func (c *fakeController) Done() <-chan struct{} { return c.done }

func (c *fakeController) Err() error { return nil }

func (c *fakeController) OpenOutgoing(ctx context.Context, path string, conn io.ReadWriteCloser) error {
	c.rec.add("open:" + c.moniker + ":" + path)
	return nil
}

// nopConn is a connection endpoint for provider opens in tests.
type nopConn struct {
	mu     sync.Mutex
	closed bool
}

func (c *nopConn) Read(p []byte) (int, error)  { return 0, io.EOF }
func (c *nopConn) Write(p []byte) (int, error) { return len(p), nil }

func (c *nopConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *nopConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// testHarness bundles a model with its fakes.
type testHarness struct {
	model    *Model
	resolver *countingResolver
	runner   *fakeRunner
	rec      *recorder
}

// lifecycleRecorder installs a hook recording started/stopped/destroy
// events into rec as "<type>:<moniker>".
func (h *testHarness) recordLifecycle() {
	h.model.Hooks().Install([]events.Registration{{
		Events: []events.Type{
			events.TypeStarted, events.TypeStopped,
			events.TypePreDestroyInstance, events.TypePostDestroyInstance,
			events.TypeDestroyed,
		},
		Hook: events.HookFunc{HookName: "recorder", Fn: func(ctx context.Context, ev *events.Event) error {
			h.rec.add(string(ev.Type) + ":" + ev.Target.String())
			return nil
		}},
	}})
}

// newHarness builds a model over a counting resolver (scheme "test") and
// a fake runner registered as the default "host" runner.
func newHarness(rootURL string, decls map[string]*decl.Component) *testHarness {
	rec := &recorder{}
	res := newCountingResolver()
	for url, d := range decls {
		res.add(url, d)
	}
	registry := resolver.NewRegistry()
	registry.Register("test", res)

	run := newFakeRunner(rec)
	m := New(Params{
		RootURL:       rootURL,
		Resolvers:     registry,
		Runners:       map[string]runner.Runner{"host": run},
		DefaultRunner: "host",
		Logger:        zap.NewNop(),
	})
	return &testHarness{model: m, resolver: res, runner: run, rec: rec}
}

func program() *decl.Program {
	return &decl.Program{Binary: "/pkg/bin/app"}
}
