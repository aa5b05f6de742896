package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/componentry/componentd/internal/shared/decl"
	"github.com/componentry/componentd/internal/shared/errs"
	"github.com/componentry/componentd/internal/shared/moniker"
)

// serviceTreeTopology is a provider/consumer tree: a exposes "svc", root
// offers it to b, both children start eagerly with the root.
func serviceTreeTopology() map[string]*decl.Component {
	return map[string]*decl.Component{
		"test://root": {
			Program: program(),
			Children: []decl.Child{
				{Name: "a", URL: "test://a", Startup: decl.StartupEager},
				{Name: "b", URL: "test://b", Startup: decl.StartupEager},
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

func TestModelLifecycleEndToEnd(t *testing.T) {
	h := newHarness("test://root", serviceTreeTopology())
	h.recordLifecycle()
	ctx := context.Background()

	require.NoError(t, h.model.Start(ctx))

	// Parents start before their eager children, in declaration order.
	startRoot := h.rec.index("started:/")
	startA := h.rec.index("started:/a:0")
	startB := h.rec.index("started:/b:0")
	require.NotEqual(t, -1, startRoot)
	require.NotEqual(t, -1, startA)
	require.NotEqual(t, -1, startB)
	assert.Less(t, startRoot, startA)
	assert.Less(t, startA, startB)

	// b's namespace holds the routed capability at the default path.
	info, ok := h.runner.startInfo("/b:0")
	require.True(t, ok)
	require.Len(t, info.Namespace, 1)
	assert.Equal(t, "/svc/svc", info.Namespace[0].Path)

	// Opening the entry binds to a's running program.
	conn := &nopConn{}
	require.NoError(t, info.Namespace[0].Provider.Open(ctx, 0, "", conn))
	openA := h.rec.index("open:/a:0:svc")
	require.NotEqual(t, -1, openA)
	assert.Less(t, h.rec.index("start:/a:0"), openA)
	assert.Equal(t, 3, h.runner.startCount(), "the open reuses a's runtime")

	// Shutdown stops the consumer before its provider, children before
	// the root.
	require.NoError(t, h.model.Root().Shutdown(ctx))
	stopRoot := h.rec.index("stop:/")
	stopA := h.rec.index("stop:/a:0")
	stopB := h.rec.index("stop:/b:0")
	require.NotEqual(t, -1, stopRoot)
	require.NotEqual(t, -1, stopA)
	require.NotEqual(t, -1, stopB)
	assert.Less(t, stopB, stopA)
	assert.Less(t, stopA, stopRoot)
}

func TestLookResolvesAlongThePath(t *testing.T) {
	h := newHarness("test://root", map[string]*decl.Component{
		"test://root": {
			Children: []decl.Child{{Name: "a", URL: "test://a"}},
		},
		"test://a": {
			Children: []decl.Child{{Name: "inner", URL: "test://inner"}},
		},
		"test://inner": {Program: program()},
	})
	ctx := context.Background()

	mon, err := moniker.Parse("/a:0/inner:0")
	require.NoError(t, err)
	realm, err := h.model.Look(ctx, mon)
	require.NoError(t, err)
	assert.Equal(t, "/a:0/inner:0", realm.Moniker().String())
	assert.Equal(t, "test://inner", realm.URL())

	// Intermediate hops were resolved on demand.
	assert.Equal(t, 1, h.resolver.count("test://root"))
	assert.Equal(t, 1, h.resolver.count("test://a"))
	assert.Equal(t, 0, h.resolver.count("test://inner"), "the target itself stays unresolved")
}

func TestLookUnknownChildFails(t *testing.T) {
	h := newHarness("test://root", map[string]*decl.Component{
		"test://root": {Program: program()},
	})

	_, err := h.model.Look(context.Background(), moniker.New(moniker.NewChild("nope")))
	assert.ErrorIs(t, err, errs.ErrInstanceNotFound)
}

func TestBindStartsTheTarget(t *testing.T) {
	h := newHarness("test://root", map[string]*decl.Component{
		"test://root": {
			Children: []decl.Child{{Name: "a", URL: "test://a"}},
		},
		"test://a": {Program: program()},
	})
	ctx := context.Background()

	realm, err := h.model.Bind(ctx, moniker.New(moniker.NewChild("a")))
	require.NoError(t, err)
	assert.True(t, realm.HasRuntime())
	assert.False(t, h.model.Root().HasRuntime(), "binding a child does not start its parent")
}

func TestDynamicChildLifecycle(t *testing.T) {
	h := newHarness("test://root", map[string]*decl.Component{
		"test://root": {
			Program:     program(),
			Collections: []decl.Collection{{Name: "workers", Durability: decl.DurabilityTransient}},
		},
		"test://w": {Program: program()},
	})
	ctx := context.Background()
	root := h.model.Root()

	child, err := root.CreateChild(ctx, "workers", "w", "test://w")
	require.NoError(t, err)
	assert.Equal(t, "/workers:w:1", child.Moniker().String())

	require.NoError(t, child.Start(ctx))
	assert.True(t, child.HasRuntime())

	// The same collection-scoped name cannot be claimed twice.
	_, err = root.CreateChild(ctx, "workers", "w", "test://w")
	assert.ErrorIs(t, err, errs.ErrInstanceAlreadyExists)

	seg, _ := child.Moniker().Leaf()
	require.NoError(t, root.DestroyChild(ctx, seg))
	assert.NotEqual(t, -1, h.rec.index("stop:/workers:w:1"))
	_, err = h.model.Look(ctx, child.Moniker())
	assert.ErrorIs(t, err, errs.ErrInstanceNotFound)

	// The name is free again; the instance id is fresh.
	again, err := root.CreateChild(ctx, "workers", "w", "test://w")
	require.NoError(t, err)
	assert.Equal(t, "/workers:w:2", again.Moniker().String())
}

func TestCreateChildUnknownCollectionFails(t *testing.T) {
	h := newHarness("test://root", map[string]*decl.Component{
		"test://root": {Program: program()},
	})

	_, err := h.model.Root().CreateChild(context.Background(), "workers", "w", "test://w")
	assert.ErrorIs(t, err, errs.ErrInstanceNotFound)
}

func TestSnapshotTree(t *testing.T) {
	h := newHarness("test://root", serviceTreeTopology())
	ctx := context.Background()

	snap := h.model.SnapshotTree()
	assert.Equal(t, "/", snap.Moniker)
	assert.False(t, snap.Resolved)
	assert.Empty(t, snap.Children)

	require.NoError(t, h.model.Start(ctx))
	snap = h.model.SnapshotTree()
	assert.True(t, snap.Resolved)
	assert.True(t, snap.Running)
	assert.NotEmpty(t, snap.RuntimeID)
	require.NotNil(t, snap.StartedAt)
	require.Len(t, snap.Children, 2)
	assert.Equal(t, "/a:0", snap.Children[0].Moniker)
	assert.Equal(t, "/b:0", snap.Children[1].Moniker)
	assert.Equal(t, []string{"svc"}, snap.Children[0].Exposed)

	require.NoError(t, h.model.Root().Shutdown(ctx))
	snap = h.model.SnapshotTree()
	assert.False(t, snap.Running)
	assert.True(t, snap.ShutDown)
	assert.Empty(t, snap.RuntimeID)
}
