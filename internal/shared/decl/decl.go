package decl

// CapabilityType classifies a routable capability.
type CapabilityType string

const (
	Protocol  CapabilityType = "protocol"
	Directory CapabilityType = "directory"
	Storage   CapabilityType = "storage"
	Runner    CapabilityType = "runner"
)

// RefKind names the relation a capability reference points at.
type RefKind string

const (
	RefSelf      RefKind = "self"
	RefParent    RefKind = "parent"
	RefChild     RefKind = "child"
	RefFramework RefKind = "framework"
)

// Ref is a capability source or target reference. Name is set only for
// child references.
type Ref struct {
	Kind RefKind `yaml:"kind"`
	Name string  `yaml:"name,omitempty"`
}

// Self, Parent and Framework are the fixed non-child references.
var (
	Self      = Ref{Kind: RefSelf}
	Parent    = Ref{Kind: RefParent}
	Framework = Ref{Kind: RefFramework}
)

// ChildRef references the named child.
func ChildRef(name string) Ref {
	return Ref{Kind: RefChild, Name: name}
}

// StartupMode controls whether a child starts with its parent.
type StartupMode string

const (
	StartupLazy  StartupMode = "lazy"
	StartupEager StartupMode = "eager"
)

// Durability controls the lifetime of collection children.
type Durability string

const (
	DurabilityTransient  Durability = "transient"
	DurabilityPersistent Durability = "persistent"
)

// Program describes what the runner launches for this component. Runner
// optionally names a runner registered in the component's environment;
// empty means the environment default.
type Program struct {
	Runner string            `yaml:"runner,omitempty"`
	Binary string            `yaml:"binary"`
	Args   []string          `yaml:"args,omitempty"`
	Env    map[string]string `yaml:"env,omitempty"`
}

// Use declares a capability this component consumes. Source is self,
// parent or framework; TargetPath is where it lands in the namespace.
type Use struct {
	Type       CapabilityType `yaml:"type"`
	Source     Ref            `yaml:"source"`
	SourceName string         `yaml:"source_name"`
	TargetPath string         `yaml:"target_path"`
}

// Expose declares a capability this component makes available to its
// parent, originating from itself or one of its children.
type Expose struct {
	Type       CapabilityType `yaml:"type"`
	Source     Ref            `yaml:"source"`
	SourceName string         `yaml:"source_name"`
	TargetName string         `yaml:"target_name"`
}

// Offer declares a capability passed from this component to one of its
// children or collections.
type Offer struct {
	Type       CapabilityType `yaml:"type"`
	Source     Ref            `yaml:"source"`
	SourceName string         `yaml:"source_name"`
	Target     Ref            `yaml:"target"`
	TargetName string         `yaml:"target_name"`
}

// Child declares a static child instance.
type Child struct {
	Name        string      `yaml:"name"`
	URL         string      `yaml:"url"`
	Startup     StartupMode `yaml:"startup,omitempty"`
	Environment string      `yaml:"environment,omitempty"`
}

// Collection declares a holder for dynamically created children.
type Collection struct {
	Name        string     `yaml:"name"`
	Durability  Durability `yaml:"durability,omitempty"`
	Environment string     `yaml:"environment,omitempty"`
}

// StorageDecl declares a storage capability backed by a directory from
// the given source.
type StorageDecl struct {
	Name       string `yaml:"name"`
	Source     Ref    `yaml:"source"`
	SourcePath string `yaml:"source_path"`
}

// RunnerRegistration makes a runner capability available under TargetName
// to components in an environment.
type RunnerRegistration struct {
	SourceName string `yaml:"source_name"`
	Source     Ref    `yaml:"source"`
	TargetName string `yaml:"target_name"`
}

// ResolverRegistration routes resolution of a URL scheme to a resolver
// capability within an environment.
type ResolverRegistration struct {
	Resolver string `yaml:"resolver"`
	Source   Ref    `yaml:"source"`
	Scheme   string `yaml:"scheme"`
}

// Environment declares a named environment children can be placed in.
type Environment struct {
	Name      string                 `yaml:"name"`
	Extends   string                 `yaml:"extends,omitempty"` // "realm" or "none"
	Runners   []RunnerRegistration   `yaml:"runners,omitempty"`
	Resolvers []ResolverRegistration `yaml:"resolvers,omitempty"`
}

// Component is a resolved, validated component declaration.
type Component struct {
	Program      *Program      `yaml:"program,omitempty"`
	Uses         []Use         `yaml:"uses,omitempty"`
	Exposes      []Expose      `yaml:"exposes,omitempty"`
	Offers       []Offer       `yaml:"offers,omitempty"`
	Children     []Child       `yaml:"children,omitempty"`
	Collections  []Collection  `yaml:"collections,omitempty"`
	Storage      []StorageDecl `yaml:"storage,omitempty"`
	Environments []Environment `yaml:"environments,omitempty"`
}

// ChildByName returns the static child declaration with the given name.
func (c *Component) ChildByName(name string) (Child, bool) {
	for _, child := range c.Children {
		if child.Name == name {
			return child, true
		}
	}
	return Child{}, false
}

// CollectionByName returns the collection declaration with the given name.
func (c *Component) CollectionByName(name string) (Collection, bool) {
	for _, coll := range c.Collections {
		if coll.Name == name {
			return coll, true
		}
	}
	return Collection{}, false
}

// EnvironmentByName returns the environment declaration with the given
// name.
func (c *Component) EnvironmentByName(name string) (Environment, bool) {
	for _, env := range c.Environments {
		if env.Name == name {
			return env, true
		}
	}
	return Environment{}, false
}

// OfferTo returns the offer targeting the named child (or its collection)
// under the given target capability name.
func (c *Component) OfferTo(childName, collection, targetName string) (Offer, bool) {
	for _, offer := range c.Offers {
		if offer.TargetName != targetName {
			continue
		}
		if offer.Target.Kind != RefChild {
			continue
		}
		if offer.Target.Name == childName || (collection != "" && offer.Target.Name == collection) {
			return offer, true
		}
	}
	return Offer{}, false
}

// ExposeNamed returns the expose with the given target name.
func (c *Component) ExposeNamed(targetName string) (Expose, bool) {
	for _, expose := range c.Exposes {
		if expose.TargetName == targetName {
			return expose, true
		}
	}
	return Expose{}, false
}

// StorageNamed returns the storage declaration with the given name.
func (c *Component) StorageNamed(name string) (StorageDecl, bool) {
	for _, s := range c.Storage {
		if s.Name == name {
			return s, true
		}
	}
	return StorageDecl{}, false
}
