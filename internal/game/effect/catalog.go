package effect

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/cardcombat/internal/game/status"
)

// StatusLookup resolves status_ref names.
type StatusLookup interface {
	Get(id string) (*status.Descriptor, bool)
}

// Catalog is an in-memory Loader of modules keyed by name.
// All methods are safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewCatalog creates a Catalog holding modules.
func NewCatalog(modules map[string]Module) *Catalog {
	c := &Catalog{modules: make(map[string]Module, len(modules))}
	for k, m := range modules {
		c.modules[k] = m
	}
	return c
}

// Register adds or replaces the module stored under key.
func (c *Catalog) Register(key string, m Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules[key] = m
}

// Load implements Loader.
func (c *Catalog) Load(ctx context.Context, key string) (Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.modules[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, key)
	}
	return m, nil
}

// Keys returns every key in sorted order.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.modules))
	for k := range c.modules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// newModule returns an empty variant for kind with authored defaults set.
func newModule(kind Kind) (Module, error) {
	switch kind {
	case KindApplyStatusToCaster:
		return &ApplyStatusToCaster{Chance: 100}, nil
	case KindApplyStatusToHitTarget:
		return &ApplyStatusToHitTarget{Chance: 100}, nil
	case KindAreaBurst:
		return &AreaBurst{DamagePercent: 100}, nil
	case KindProjectile:
		return &Projectile{Count: 1, PoolKey: "projectile"}, nil
	case KindConditional:
		return &Conditional{}, nil
	case KindRandomChoice:
		return &RandomChoice{}, nil
	case KindSplitOnHit:
		return &SplitOnHit{Count: 2, DamagePercent: 50, PoolKey: "projectile"}, nil
	case KindLifesteal:
		return &Lifesteal{}, nil
	case KindDetonate:
		return &Detonate{Percent: 100}, nil
	default:
		return nil, fmt.Errorf("unknown module kind %q", kind)
	}
}

// DecodeModule decodes one mapping node whose "kind" key selects the variant.
// Unknown fields are rejected.
func DecodeModule(node *yaml.Node) (Module, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: module must be a mapping", node.Line)
	}
	var kind string
	body := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Value == "kind" {
			kind = v.Value
			continue
		}
		body.Content = append(body.Content, k, v)
	}
	if kind == "" {
		return nil, fmt.Errorf("line %d: module kind is required", node.Line)
	}
	m, err := newModule(Kind(kind))
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", node.Line, err)
	}
	raw, err := yaml.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", node.Line, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("line %d: decoding %s: %w", node.Line, kind, err)
	}
	return m, nil
}

// LoadDirectory reads every *.yaml file in dir. Each file is a mapping from
// module key to module body. status_ref fields are resolved against
// statuses, every module is validated, and module keys referenced by
// conditionals, random pools and payloads must exist.
//
// Precondition: dir must be a readable directory; statuses must be non-nil.
// Postcondition: Returns a populated Catalog, or an error naming the first bad file or key.
func LoadDirectory(dir string, statuses StatusLookup) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading effects dir %q: %w", dir, err)
	}
	c := NewCatalog(nil)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := c.loadFile(path, statuses); err != nil {
			return nil, err
		}
	}
	if err := c.checkReferences(); err != nil {
		return nil, fmt.Errorf("effects dir %q: %w", dir, err)
	}
	return c, nil
}

func (c *Catalog) loadFile(path string, statuses StatusLookup) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %q: %w", path, err)
	}
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %q: %w", path, err)
	}
	for key, node := range doc {
		if _, dup := c.modules[key]; dup {
			return fmt.Errorf("%q: duplicate module key %q", path, key)
		}
		m, err := DecodeModule(&node)
		if err != nil {
			return fmt.Errorf("%q: module %q: %w", path, key, err)
		}
		if err := resolveStatus(m, statuses); err != nil {
			return fmt.Errorf("%q: module %q: %w", path, key, err)
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%q: module %q: %w", path, key, err)
		}
		c.modules[key] = m
	}
	return nil
}

func resolveStatus(m Module, statuses StatusLookup) error {
	var ref string
	var slot **status.Descriptor
	switch m := m.(type) {
	case *ApplyStatusToCaster:
		ref, slot = m.StatusRef, &m.Status
	case *ApplyStatusToHitTarget:
		ref, slot = m.StatusRef, &m.Status
	default:
		return nil
	}
	if ref == "" {
		return nil
	}
	if *slot != nil {
		return fmt.Errorf("status and status_ref are mutually exclusive")
	}
	desc, ok := statuses.Get(ref)
	if !ok {
		return fmt.Errorf("unknown status_ref %q", ref)
	}
	*slot = desc
	return nil
}

// checkReferences reports module keys that are referenced but not defined.
func (c *Catalog) checkReferences() error {
	var missing []string
	need := func(owner, key string) {
		if _, ok := c.modules[key]; !ok {
			missing = append(missing, fmt.Sprintf("%s -> %s", owner, key))
		}
	}
	for key, m := range c.modules {
		switch m := m.(type) {
		case *Conditional:
			need(key, m.Child)
		case *RandomChoice:
			for _, k := range m.Pool {
				need(key, k)
			}
		case *Projectile:
			for _, p := range m.Payloads {
				need(key, p.Module)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("unresolved module references: %s", strings.Join(missing, ", "))
	}
	return nil
}
