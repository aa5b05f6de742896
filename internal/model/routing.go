package model

import (
	"context"
	"fmt"
	"io"

	"github.com/componentry/componentd/internal/capability"
	"github.com/componentry/componentd/internal/events"
	"github.com/componentry/componentd/internal/runner"
	"github.com/componentry/componentd/internal/shared/decl"
	"github.com/componentry/componentd/internal/shared/errs"
	"github.com/componentry/componentd/internal/shared/moniker"
)

// SourceKind tags where a routed capability resolves.
type SourceKind string

const (
	// SourceComponent: the capability originates from a component
	// instance in the tree.
	SourceComponent SourceKind = "component"
	// SourceFramework: the capability is implemented by the framework,
	// scoped to the realm it was requested in.
	SourceFramework SourceKind = "framework"
	// SourceAboveRoot: the capability comes from above the root realm,
	// i.e. the orchestrator's own namespace.
	SourceAboveRoot SourceKind = "above_root"
	// SourceNamespace: the capability comes from the requester's own
	// namespace.
	SourceNamespace SourceKind = "namespace"
)

// CapabilitySource describes where a capability resolved. It is a fresh
// value per routing call and never cached across calls: environment and
// hook substitutions vary per request site. Realm is the source instance
// for SourceComponent and the scope for SourceFramework; nil otherwise.
type CapabilitySource struct {
	Kind       SourceKind
	Capability capability.Capability
	Realm      *Realm
}

// String renders the source for logs and routing errors.
func (s CapabilitySource) String() string {
	switch s.Kind {
	case SourceComponent:
		return fmt.Sprintf("component %s %q", s.Realm.Moniker(), s.Capability.ID())
	case SourceFramework:
		return fmt.Sprintf("framework %q scoped to %s", s.Capability.ID(), s.Realm.Moniker())
	default:
		return fmt.Sprintf("%s %q", s.Kind, s.Capability.ID())
	}
}

// RoutedCapability is the mutable payload of a TypeCapabilityRouted
// event. A hook may claim the capability by setting Provider; later hooks
// in the dispatch observe earlier substitutions, and the last non-nil
// substitution wins. A hook returning an error vetoes the route instead;
// there is no veto-and-substitute.
type RoutedCapability struct {
	Source   CapabilitySource
	Provider capability.Provider
}

// SetProvider substitutes the provider. Nil is ignored so a hook cannot
// accidentally clear an earlier hook's claim.
func (p *RoutedCapability) SetProvider(prov capability.Provider) {
	if prov != nil {
		p.Provider = prov
	}
}

// RouteUse finds the authoritative source for one of target's use
// declarations, lazily resolving realms along the walk, and runs the
// CapabilityRouted hook chain over the result. The returned provider is
// non-nil only if a hook claimed the capability.
func (m *Model) RouteUse(ctx context.Context, target *Realm, use decl.Use) (CapabilitySource, capability.Provider, error) {
	cap := capability.Capability{Type: use.Type, Name: use.SourceName, Path: use.TargetPath}

	var (
		src CapabilitySource
		err error
	)
	switch use.Source.Kind {
	case decl.RefSelf:
		src = CapabilitySource{Kind: SourceComponent, Capability: cap, Realm: target}
	case decl.RefFramework:
		src = CapabilitySource{Kind: SourceFramework, Capability: cap, Realm: target}
	case decl.RefParent:
		if target.parent == nil {
			src = CapabilitySource{Kind: SourceAboveRoot, Capability: cap}
		} else {
			leaf, _ := target.moniker.Leaf()
			src, err = m.walkOfferChain(ctx, target.parent, leaf, use.SourceName, use.Type)
		}
	default:
		err = errs.Routing(target.moniker, use.SourceName, fmt.Sprintf("unroutable use source %q", use.Source.Kind))
	}

	if m.metrics != nil {
		m.metrics.RecordRoute(string(src.Kind), err)
	}
	if err != nil {
		return CapabilitySource{}, nil, err
	}
	return m.runRoutedHooks(ctx, target, src)
}

// RouteExpose finds the source of a capability the realm exposes to its
// parent, for callers opening an exposed capability from above.
func (m *Model) RouteExpose(ctx context.Context, realm *Realm, name string, capType decl.CapabilityType) (CapabilitySource, capability.Provider, error) {
	src, err := m.walkExposeChain(ctx, realm, name, capType)
	if m.metrics != nil {
		m.metrics.RecordRoute(string(src.Kind), err)
	}
	if err != nil {
		return CapabilitySource{}, nil, err
	}
	return m.runRoutedHooks(ctx, realm, src)
}

func (m *Model) runRoutedHooks(ctx context.Context, target *Realm, src CapabilitySource) (CapabilitySource, capability.Provider, error) {
	payload := &RoutedCapability{Source: src}
	ev := events.New(events.TypeCapabilityRouted, target.moniker, payload)
	if err := m.dispatch(ctx, ev); err != nil {
		return CapabilitySource{}, nil, err
	}
	return src, payload.Provider, nil
}

// walkOfferChain resolves one hop of upward routing: realm must offer the
// capability to the child identified by the leaf segment. The walk
// recurses upward through parent offers and downward through child
// exposes; children strictly increase depth, and validation rejects
// self-referential offers, so the walk cannot revisit a node.
func (m *Model) walkOfferChain(ctx context.Context, realm *Realm, child moniker.Child, name string, capType decl.CapabilityType) (CapabilitySource, error) {
	d, err := realm.Resolve(ctx)
	if err != nil {
		return CapabilitySource{}, err
	}

	childName, collection := splitPartial(child.Partial())
	offer, ok := d.OfferTo(childName, collection, name)
	if !ok {
		return CapabilitySource{}, errs.Routing(realm.moniker, name,
			fmt.Sprintf("no offer to child %q", child.Partial()))
	}
	if offer.Type != capType {
		return CapabilitySource{}, errs.Routing(realm.moniker, name,
			fmt.Sprintf("offer is a %s, want %s", offer.Type, capType))
	}

	cap := capability.Capability{Type: capType, Name: offer.SourceName}
	switch offer.Source.Kind {
	case decl.RefSelf:
		if capType == decl.Storage {
			return m.storageSource(ctx, realm, offer.SourceName)
		}
		return CapabilitySource{Kind: SourceComponent, Capability: cap, Realm: realm}, nil
	case decl.RefFramework:
		return CapabilitySource{Kind: SourceFramework, Capability: cap, Realm: realm}, nil
	case decl.RefParent:
		if realm.parent == nil {
			return CapabilitySource{Kind: SourceAboveRoot, Capability: cap}, nil
		}
		leaf, _ := realm.moniker.Leaf()
		return m.walkOfferChain(ctx, realm.parent, leaf, offer.SourceName, capType)
	case decl.RefChild:
		childRealm, ok := realm.childByPartial(offer.Source.Name)
		if !ok {
			return CapabilitySource{}, errs.Routing(realm.moniker, name,
				fmt.Sprintf("offer source child %q not found", offer.Source.Name))
		}
		return m.walkExposeChain(ctx, childRealm, offer.SourceName, capType)
	default:
		return CapabilitySource{}, errs.Routing(realm.moniker, name,
			fmt.Sprintf("unroutable offer source %q", offer.Source.Kind))
	}
}

// walkExposeChain resolves downward routing: realm must expose the
// capability, from itself or transitively from one of its children.
func (m *Model) walkExposeChain(ctx context.Context, realm *Realm, name string, capType decl.CapabilityType) (CapabilitySource, error) {
	d, err := realm.Resolve(ctx)
	if err != nil {
		return CapabilitySource{}, err
	}

	expose, ok := d.ExposeNamed(name)
	if !ok {
		return CapabilitySource{}, errs.Routing(realm.moniker, name, "not exposed")
	}
	if expose.Type != capType {
		return CapabilitySource{}, errs.Routing(realm.moniker, name,
			fmt.Sprintf("expose is a %s, want %s", expose.Type, capType))
	}

	switch expose.Source.Kind {
	case decl.RefSelf:
		cap := capability.Capability{Type: capType, Name: expose.SourceName}
		return CapabilitySource{Kind: SourceComponent, Capability: cap, Realm: realm}, nil
	case decl.RefChild:
		childRealm, ok := realm.childByPartial(expose.Source.Name)
		if !ok {
			return CapabilitySource{}, errs.Routing(realm.moniker, name,
				fmt.Sprintf("expose source child %q not found", expose.Source.Name))
		}
		return m.walkExposeChain(ctx, childRealm, expose.SourceName, capType)
	default:
		return CapabilitySource{}, errs.Routing(realm.moniker, name,
			fmt.Sprintf("unroutable expose source %q", expose.Source.Kind))
	}
}

// storageSource resolves a storage declaration to its backing directory
// source. The backing itself is served by the storage collaborator,
// keyed by the consumer's moniker and the capability id.
func (m *Model) storageSource(ctx context.Context, realm *Realm, name string) (CapabilitySource, error) {
	d, err := realm.Resolve(ctx)
	if err != nil {
		return CapabilitySource{}, err
	}
	s, ok := d.StorageNamed(name)
	if !ok {
		return CapabilitySource{}, errs.Storage(realm.moniker, name, fmt.Errorf("no storage declaration"))
	}

	cap := capability.Capability{Type: decl.Storage, Name: s.Name, Path: s.SourcePath}
	switch s.Source.Kind {
	case decl.RefSelf:
		return CapabilitySource{Kind: SourceComponent, Capability: cap, Realm: realm}, nil
	case decl.RefChild:
		childRealm, ok := realm.childByPartial(s.Source.Name)
		if !ok {
			return CapabilitySource{}, errs.Storage(realm.moniker, name,
				fmt.Errorf("backing source child %q not found", s.Source.Name))
		}
		return CapabilitySource{Kind: SourceComponent, Capability: cap, Realm: childRealm}, nil
	case decl.RefParent:
		if realm.parent == nil {
			return CapabilitySource{Kind: SourceAboveRoot, Capability: cap}, nil
		}
		leaf, _ := realm.moniker.Leaf()
		return m.walkOfferChain(ctx, realm.parent, leaf, s.SourcePath, decl.Directory)
	default:
		return CapabilitySource{}, errs.Storage(realm.moniker, name,
			fmt.Errorf("unroutable backing source %q", s.Source.Kind))
	}
}

// OpenCapability connects conn to the routed capability. provider is the
// hook-substituted provider from routing, nil to use the default for the
// source kind. On failure conn is closed so the requester observes a
// closed channel rather than a hang.
func (m *Model) OpenCapability(ctx context.Context, src CapabilitySource, provider capability.Provider, flags uint32, relPath string, conn io.ReadWriteCloser) error {
	if provider == nil {
		provider = m.defaultProvider(src)
	}
	if err := provider.Open(ctx, flags, relPath, conn); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// defaultProvider returns the provider used when no hook claimed the
// source. Component sources bind lazily: the source realm starts on
// first open, then the connection is handed to its program's outgoing
// server. Non-component sources have no default; routing them without a
// hook claim is an error surfaced at open time.
func (m *Model) defaultProvider(src CapabilitySource) capability.Provider {
	if src.Kind == SourceComponent {
		return &componentProvider{model: m, source: src}
	}
	return capability.ProviderFunc(func(ctx context.Context, flags uint32, relPath string, conn io.ReadWriteCloser) error {
		return errs.Routing(src, src.Capability.ID(),
			fmt.Sprintf("no provider claimed %s source", src.Kind))
	})
}

// componentProvider serves a component-sourced capability by starting the
// source realm and opening the capability through its program's outgoing
// server.
type componentProvider struct {
	model  *Model
	source CapabilitySource
}

// OutgoingServer is implemented by runner controllers that can serve
// connections to the program's published capabilities.
type OutgoingServer interface {
	OpenOutgoing(ctx context.Context, path string, conn io.ReadWriteCloser) error
}

func (p *componentProvider) Open(ctx context.Context, flags uint32, relPath string, conn io.ReadWriteCloser) error {
	realm := p.source.Realm
	if err := realm.Start(ctx); err != nil {
		return err
	}

	realm.execMu.Lock()
	var ctrl runner.Controller
	if realm.runtime != nil {
		ctrl = realm.runtime.controller
	}
	realm.execMu.Unlock()

	out, ok := ctrl.(OutgoingServer)
	if !ok {
		return errs.Routing(realm.moniker, p.source.Capability.ID(), "source program serves no outgoing capabilities")
	}
	path := p.source.Capability.ID()
	if relPath != "" {
		path = path + "/" + relPath
	}
	return out.OpenOutgoing(ctx, path, conn)
}

func splitPartial(partial string) (name, collection string) {
	for i := 0; i < len(partial); i++ {
		if partial[i] == ':' {
			return partial[i+1:], partial[:i]
		}
	}
	return partial, ""
}
