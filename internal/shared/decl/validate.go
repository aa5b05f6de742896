package decl

import (
	"fmt"
)

// Validate checks internal consistency of a resolved declaration. It is
// called by the core after every resolver round-trip, before the
// declaration is cached. Self-referential offers are rejected here so the
// router can rely on the instance tree being acyclic by construction.
func (c *Component) Validate() error {
	if c == nil {
		return fmt.Errorf("nil declaration")
	}
	if c.empty() {
		return fmt.Errorf("empty declaration")
	}

	children := map[string]bool{}
	for _, child := range c.Children {
		if child.Name == "" {
			return fmt.Errorf("child with empty name")
		}
		if child.URL == "" {
			return fmt.Errorf("child %q: empty url", child.Name)
		}
		if children[child.Name] {
			return fmt.Errorf("duplicate child %q", child.Name)
		}
		switch child.Startup {
		case "", StartupLazy, StartupEager:
		default:
			return fmt.Errorf("child %q: unknown startup mode %q", child.Name, child.Startup)
		}
		children[child.Name] = true
	}

	collections := map[string]bool{}
	for _, coll := range c.Collections {
		if coll.Name == "" {
			return fmt.Errorf("collection with empty name")
		}
		if collections[coll.Name] || children[coll.Name] {
			return fmt.Errorf("duplicate collection %q", coll.Name)
		}
		collections[coll.Name] = true
	}

	environments := map[string]bool{}
	for _, env := range c.Environments {
		if env.Name == "" {
			return fmt.Errorf("environment with empty name")
		}
		if environments[env.Name] {
			return fmt.Errorf("duplicate environment %q", env.Name)
		}
		environments[env.Name] = true
	}
	for _, child := range c.Children {
		if child.Environment != "" && !environments[child.Environment] {
			return fmt.Errorf("child %q: unknown environment %q", child.Name, child.Environment)
		}
	}

	targetPaths := map[string]bool{}
	for _, use := range c.Uses {
		if use.SourceName == "" {
			return fmt.Errorf("use with empty source name")
		}
		switch use.Source.Kind {
		case RefSelf, RefParent, RefFramework:
		default:
			return fmt.Errorf("use %q: source must be self, parent or framework", use.SourceName)
		}
		if use.TargetPath != "" {
			if targetPaths[use.TargetPath] {
				return fmt.Errorf("use %q: duplicate target path %q", use.SourceName, use.TargetPath)
			}
			targetPaths[use.TargetPath] = true
		}
	}

	for _, expose := range c.Exposes {
		if expose.SourceName == "" || expose.TargetName == "" {
			return fmt.Errorf("expose with empty name")
		}
		switch expose.Source.Kind {
		case RefSelf:
		case RefChild:
			if !children[expose.Source.Name] {
				return fmt.Errorf("expose %q: unknown child %q", expose.TargetName, expose.Source.Name)
			}
		default:
			return fmt.Errorf("expose %q: source must be self or a child", expose.TargetName)
		}
	}

	for _, offer := range c.Offers {
		if offer.SourceName == "" || offer.TargetName == "" {
			return fmt.Errorf("offer with empty name")
		}
		if offer.Target.Kind != RefChild || offer.Target.Name == "" {
			return fmt.Errorf("offer %q: target must name a child or collection", offer.TargetName)
		}
		if !children[offer.Target.Name] && !collections[offer.Target.Name] {
			return fmt.Errorf("offer %q: unknown target %q", offer.TargetName, offer.Target.Name)
		}
		switch offer.Source.Kind {
		case RefSelf, RefParent, RefFramework:
		case RefChild:
			if !children[offer.Source.Name] {
				return fmt.Errorf("offer %q: unknown source child %q", offer.TargetName, offer.Source.Name)
			}
			// An offer looping back to its own source would make the
			// route walk revisit the same node.
			if offer.Source.Name == offer.Target.Name {
				return fmt.Errorf("offer %q: self-referential offer to %q", offer.TargetName, offer.Target.Name)
			}
		default:
			return fmt.Errorf("offer %q: unknown source kind %q", offer.TargetName, offer.Source.Kind)
		}
	}

	for _, s := range c.Storage {
		if s.Name == "" {
			return fmt.Errorf("storage with empty name")
		}
		switch s.Source.Kind {
		case RefSelf, RefParent:
		case RefChild:
			if !children[s.Source.Name] {
				return fmt.Errorf("storage %q: unknown child %q", s.Name, s.Source.Name)
			}
		default:
			return fmt.Errorf("storage %q: unknown source kind %q", s.Name, s.Source.Kind)
		}
	}

	return nil
}

func (c *Component) empty() bool {
	return c.Program == nil &&
		len(c.Uses) == 0 &&
		len(c.Exposes) == 0 &&
		len(c.Offers) == 0 &&
		len(c.Children) == 0 &&
		len(c.Collections) == 0 &&
		len(c.Storage) == 0 &&
		len(c.Environments) == 0
}
