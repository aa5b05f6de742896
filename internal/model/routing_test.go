package model

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/componentry/componentd/internal/capability"
	"github.com/componentry/componentd/internal/events"
	"github.com/componentry/componentd/internal/shared/decl"
	"github.com/componentry/componentd/internal/shared/errs"
	"github.com/componentry/componentd/internal/shared/moniker"
)

// offerTopology: a exposes "svc" from itself, root offers it from #a to
// #b, b uses it from its parent.
func offerTopology() map[string]*decl.Component {
	return map[string]*decl.Component{
		"test://root": {
			Program: program(),
			Children: []decl.Child{
				{Name: "a", URL: "test://a"},
				{Name: "b", URL: "test://b"},
			},
			Offers: []decl.Offer{{
				Type:       decl.Protocol,
				Source:     decl.ChildRef("a"),
				SourceName: "svc",
				Target:     decl.ChildRef("b"),
				TargetName: "svc",
			}},
		},
		"test://a": {
			Program: program(),
			Exposes: []decl.Expose{{
				Type:       decl.Protocol,
				Source:     decl.Self,
				SourceName: "svc",
				TargetName: "svc",
			}},
		},
		"test://b": {
			Program: program(),
			Uses: []decl.Use{{
				Type:       decl.Protocol,
				Source:     decl.Parent,
				SourceName: "svc",
			}},
		},
	}
}

func useOf(t *testing.T, realm *Realm) decl.Use {
	t.Helper()
	d := realm.Declaration()
	require.NotNil(t, d)
	require.NotEmpty(t, d.Uses)
	return d.Uses[0]
}

func TestRouteUseThroughOfferAndExpose(t *testing.T) {
	h := newHarness("test://root", offerTopology())
	ctx := context.Background()

	b, err := h.model.Look(ctx, moniker.New(moniker.NewChild("b")))
	require.NoError(t, err)

	src, provider, err := h.model.RouteUse(ctx, b, useOf(t, b))
	require.NoError(t, err)
	assert.Nil(t, provider, "no hook claimed the capability")
	assert.Equal(t, SourceComponent, src.Kind)
	require.NotNil(t, src.Realm)
	assert.Equal(t, "/a:0", src.Realm.Moniker().String())
	assert.Equal(t, "svc", src.Capability.Name)
}

func TestRouteIsCallerOrderIndependent(t *testing.T) {
	ctx := context.Background()

	// Route b's use first, a untouched beforehand; then a fresh tree
	// where a is resolved first. Both walks land on the same source.
	monikers := make([]string, 0, 2)
	for _, resolveAFirst := range []bool{false, true} {
		h := newHarness("test://root", offerTopology())
		if resolveAFirst {
			a, err := h.model.Look(ctx, moniker.New(moniker.NewChild("a")))
			require.NoError(t, err)
			_, err = a.Resolve(ctx)
			require.NoError(t, err)
		}
		b, err := h.model.Look(ctx, moniker.New(moniker.NewChild("b")))
		require.NoError(t, err)
		src, _, err := h.model.RouteUse(ctx, b, useOf(t, b))
		require.NoError(t, err)
		monikers = append(monikers, src.Realm.Moniker().String())

		// The walk resolved a exactly once regardless of who asked.
		assert.Equal(t, 1, h.resolver.count("test://a"))
	}
	assert.Equal(t, monikers[0], monikers[1])
}

func TestRouteResolvesSourceLazily(t *testing.T) {
	h := newHarness("test://root", offerTopology())
	ctx := context.Background()

	b, err := h.model.Look(ctx, moniker.New(moniker.NewChild("b")))
	require.NoError(t, err)
	assert.Equal(t, 0, h.resolver.count("test://a"))

	_, _, err = h.model.RouteUse(ctx, b, useOf(t, b))
	require.NoError(t, err)
	assert.Equal(t, 1, h.resolver.count("test://a"), "expose walk resolves the source")

	// Routing again reuses the cached declaration.
	_, _, err = h.model.RouteUse(ctx, b, useOf(t, b))
	require.NoError(t, err)
	assert.Equal(t, 1, h.resolver.count("test://a"))
}

func TestRouteFailsWithoutOffer(t *testing.T) {
	decls := offerTopology()
	decls["test://root"].Offers = nil
	h := newHarness("test://root", decls)
	ctx := context.Background()

	b, err := h.model.Look(ctx, moniker.New(moniker.NewChild("b")))
	require.NoError(t, err)

	_, _, err = h.model.RouteUse(ctx, b, useOf(t, b))
	assert.ErrorIs(t, err, errs.ErrRouting)
}

func TestRouteFailsOnTypeMismatch(t *testing.T) {
	decls := offerTopology()
	decls["test://root"].Offers[0].Type = decl.Directory
	h := newHarness("test://root", decls)
	ctx := context.Background()

	b, err := h.model.Look(ctx, moniker.New(moniker.NewChild("b")))
	require.NoError(t, err)

	_, _, err = h.model.RouteUse(ctx, b, useOf(t, b))
	assert.ErrorIs(t, err, errs.ErrRouting)
}

func TestRouteFrameworkAndAboveRootSources(t *testing.T) {
	h := newHarness("test://root", map[string]*decl.Component{
		"test://root": {
			Program: program(),
			Uses: []decl.Use{
				{Type: decl.Protocol, Source: decl.Framework, SourceName: "realm"},
				{Type: decl.Protocol, Source: decl.Parent, SourceName: "log"},
			},
		},
	})
	ctx := context.Background()
	root := h.model.Root()
	_, err := root.Resolve(ctx)
	require.NoError(t, err)

	src, _, err := h.model.RouteUse(ctx, root, root.Declaration().Uses[0])
	require.NoError(t, err)
	assert.Equal(t, SourceFramework, src.Kind)
	assert.Equal(t, root, src.Realm, "framework capabilities are scoped to the requesting realm")

	src, _, err = h.model.RouteUse(ctx, root, root.Declaration().Uses[1])
	require.NoError(t, err)
	assert.Equal(t, SourceAboveRoot, src.Kind)
	assert.Nil(t, src.Realm)
}

func TestRoutedHookSubstitutionLastWins(t *testing.T) {
	h := newHarness("test://root", offerTopology())
	ctx := context.Background()

	first := capability.ProviderFunc(func(ctx context.Context, flags uint32, relPath string, conn io.ReadWriteCloser) error {
		h.rec.add("open:first")
		return nil
	})
	second := capability.ProviderFunc(func(ctx context.Context, flags uint32, relPath string, conn io.ReadWriteCloser) error {
		h.rec.add("open:second")
		return nil
	})

	sawFirst := false
	h.model.Hooks().Install([]events.Registration{
		{
			Events: []events.Type{events.TypeCapabilityRouted},
			Hook: events.HookFunc{HookName: "claim-first", Fn: func(ctx context.Context, ev *events.Event) error {
				ev.Payload.(*RoutedCapability).SetProvider(first)
				return nil
			}},
		},
		{
			Events: []events.Type{events.TypeCapabilityRouted},
			Hook: events.HookFunc{HookName: "claim-second", Fn: func(ctx context.Context, ev *events.Event) error {
				payload := ev.Payload.(*RoutedCapability)
				sawFirst = payload.Provider != nil
				payload.SetProvider(second)
				payload.SetProvider(nil) // must not clear the claim
				return nil
			}},
		},
	})

	b, err := h.model.Look(ctx, moniker.New(moniker.NewChild("b")))
	require.NoError(t, err)
	src, provider, err := h.model.RouteUse(ctx, b, useOf(t, b))
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.True(t, sawFirst, "later hooks observe earlier substitutions")

	conn := &nopConn{}
	require.NoError(t, h.model.OpenCapability(ctx, src, provider, 0, "", conn))
	assert.Equal(t, []string{"open:second"}, h.rec.list())
}

func TestRoutedHookVetoAbortsRoute(t *testing.T) {
	h := newHarness("test://root", offerTopology())
	ctx := context.Background()

	h.model.Hooks().Install([]events.Registration{{
		Events: []events.Type{events.TypeCapabilityRouted},
		Hook: events.HookFunc{HookName: "policy", Fn: func(ctx context.Context, ev *events.Event) error {
			return errors.New("denied")
		}},
	}})

	b, err := h.model.Look(ctx, moniker.New(moniker.NewChild("b")))
	require.NoError(t, err)
	_, _, err = h.model.RouteUse(ctx, b, useOf(t, b))
	assert.ErrorIs(t, err, errs.ErrEvents)
}

func TestOpenCapabilityStartsSourceRealm(t *testing.T) {
	h := newHarness("test://root", offerTopology())
	ctx := context.Background()

	b, err := h.model.Look(ctx, moniker.New(moniker.NewChild("b")))
	require.NoError(t, err)
	src, provider, err := h.model.RouteUse(ctx, b, useOf(t, b))
	require.NoError(t, err)

	conn := &nopConn{}
	require.NoError(t, h.model.OpenCapability(ctx, src, provider, 0, "", conn))

	startA := h.rec.index("start:/a:0")
	openA := h.rec.index("open:/a:0:svc")
	require.NotEqual(t, -1, startA)
	require.NotEqual(t, -1, openA)
	assert.Less(t, startA, openA, "the source starts before its capability is opened")
	assert.False(t, conn.isClosed())

	// A second open binds to the already-running source.
	require.NoError(t, h.model.OpenCapability(ctx, src, provider, 0, "deep/path", conn))
	assert.Equal(t, 1, h.runner.startCount())
	assert.NotEqual(t, -1, h.rec.index("open:/a:0:svc/deep/path"))
}

func TestOpenCapabilityClosesConnOnError(t *testing.T) {
	h := newHarness("test://root", offerTopology())
	ctx := context.Background()

	failing := capability.ProviderFunc(func(ctx context.Context, flags uint32, relPath string, conn io.ReadWriteCloser) error {
		return errors.New("backend gone")
	})

	b, err := h.model.Look(ctx, moniker.New(moniker.NewChild("b")))
	require.NoError(t, err)
	src, _, err := h.model.RouteUse(ctx, b, useOf(t, b))
	require.NoError(t, err)

	conn := &nopConn{}
	err = h.model.OpenCapability(ctx, src, failing, 0, "", conn)
	require.Error(t, err)
	assert.True(t, conn.isClosed())
}

func TestOpenNonComponentSourceWithoutClaimFails(t *testing.T) {
	h := newHarness("test://root", map[string]*decl.Component{
		"test://root": {
			Program: program(),
			Uses:    []decl.Use{{Type: decl.Protocol, Source: decl.Parent, SourceName: "log"}},
		},
	})
	ctx := context.Background()
	root := h.model.Root()
	_, err := root.Resolve(ctx)
	require.NoError(t, err)

	src, provider, err := h.model.RouteUse(ctx, root, root.Declaration().Uses[0])
	require.NoError(t, err)
	require.Nil(t, provider)

	conn := &nopConn{}
	err = h.model.OpenCapability(ctx, src, provider, 0, "", conn)
	assert.ErrorIs(t, err, errs.ErrRouting)
	assert.True(t, conn.isClosed())
}

func TestRouteStorageFromParent(t *testing.T) {
	h := newHarness("test://root", map[string]*decl.Component{
		"test://root": {
			Program:  program(),
			Children: []decl.Child{{Name: "b", URL: "test://b"}},
			Storage: []decl.StorageDecl{{
				Name:       "data",
				Source:     decl.Self,
				SourcePath: "/data",
			}},
			Offers: []decl.Offer{{
				Type:       decl.Storage,
				Source:     decl.Self,
				SourceName: "data",
				Target:     decl.ChildRef("b"),
				TargetName: "data",
			}},
		},
		"test://b": {
			Program: program(),
			Uses:    []decl.Use{{Type: decl.Storage, Source: decl.Parent, SourceName: "data"}},
		},
	})
	ctx := context.Background()

	b, err := h.model.Look(ctx, moniker.New(moniker.NewChild("b")))
	require.NoError(t, err)

	src, _, err := h.model.RouteUse(ctx, b, useOf(t, b))
	require.NoError(t, err)
	assert.Equal(t, SourceComponent, src.Kind)
	assert.Equal(t, h.model.Root(), src.Realm, "storage is backed by the declaring realm")
	assert.Equal(t, decl.Storage, src.Capability.Type)
	assert.Equal(t, "/data", src.Capability.Path)
	assert.Equal(t, "/data", src.Capability.ID())
}

func TestRouteStorageWithoutDeclarationFails(t *testing.T) {
	h := newHarness("test://root", map[string]*decl.Component{
		"test://root": {
			Program:  program(),
			Children: []decl.Child{{Name: "b", URL: "test://b"}},
			Offers: []decl.Offer{{
				Type:       decl.Storage,
				Source:     decl.Self,
				SourceName: "data",
				Target:     decl.ChildRef("b"),
				TargetName: "data",
			}},
		},
		"test://b": {
			Program: program(),
			Uses:    []decl.Use{{Type: decl.Storage, Source: decl.Parent, SourceName: "data"}},
		},
	})
	ctx := context.Background()

	b, err := h.model.Look(ctx, moniker.New(moniker.NewChild("b")))
	require.NoError(t, err)

	_, _, err = h.model.RouteUse(ctx, b, useOf(t, b))
	assert.ErrorIs(t, err, errs.ErrStorage)
}

func TestRouteExposeFromAbove(t *testing.T) {
	h := newHarness("test://root", map[string]*decl.Component{
		"test://root": {
			Program:  program(),
			Children: []decl.Child{{Name: "a", URL: "test://a"}},
		},
		"test://a": {
			Program:  program(),
			Children: []decl.Child{{Name: "inner", URL: "test://inner"}},
			Exposes: []decl.Expose{{
				Type:       decl.Protocol,
				Source:     decl.ChildRef("inner"),
				SourceName: "svc",
				TargetName: "svc",
			}},
		},
		"test://inner": {
			Program: program(),
			Exposes: []decl.Expose{{
				Type:       decl.Protocol,
				Source:     decl.Self,
				SourceName: "svc",
				TargetName: "svc",
			}},
		},
	})
	ctx := context.Background()

	a, err := h.model.Look(ctx, moniker.New(moniker.NewChild("a")))
	require.NoError(t, err)

	src, _, err := h.model.RouteExpose(ctx, a, "svc", decl.Protocol)
	require.NoError(t, err)
	assert.Equal(t, SourceComponent, src.Kind)
	assert.Equal(t, "/a:0/inner:0", src.Realm.Moniker().String())
}
