package domain

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrUnknownDomain is returned by Get when no pack or alias has the requested name
var ErrUnknownDomain = errors.New("unknown domain")

// GenericPack is the name of the fallback pack
const GenericPack = "generic"

//go:embed packs/*.yaml
var builtinPacks embed.FS

// Registry maps domain identifiers to packs
type Registry struct {
	mu       sync.RWMutex
	packs    map[string]*Pack
	aliases  map[string]string
	fallback string
}

// NewRegistry creates a registry holding the built-in packs
func NewRegistry() (*Registry, error) {
	r := &Registry{
		packs:    make(map[string]*Pack),
		aliases:  make(map[string]string),
		fallback: GenericPack,
	}

	entries, err := fs.ReadDir(builtinPacks, "packs")
	if err != nil {
		return nil, fmt.Errorf("read built-in packs: %w", err)
	}
	for _, e := range entries {
		data, err := builtinPacks.ReadFile("packs/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read built-in pack %s: %w", e.Name(), err)
		}
		p, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("built-in pack %s: %w", e.Name(), err)
		}
		r.Register(p)
	}

	if _, ok := r.packs[GenericPack]; !ok {
		return nil, fmt.Errorf("built-in packs lack %q", GenericPack)
	}
	return r, nil
}

// MustNewRegistry is NewRegistry for built-ins that are known to be valid
func MustNewRegistry() *Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return r
}

// Parse decodes and validates one YAML pack
func Parse(data []byte) (*Pack, error) {
	var p Pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode pack: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadDir registers every *.yaml / *.yml pack in dir, replacing built-ins of the same name
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read pack dir: %w", err)
	}

	loaded := 0
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return loaded, fmt.Errorf("read pack %s: %w", e.Name(), err)
		}
		p, err := Parse(data)
		if err != nil {
			return loaded, fmt.Errorf("pack %s: %w", e.Name(), err)
		}
		r.Register(p)
		loaded++
	}
	return loaded, nil
}

// Register adds or replaces a pack
func (r *Registry) Register(p *Pack) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.Name = normalize(p.Name)
	r.packs[p.Name] = p
	for _, a := range p.Aliases {
		r.aliases[normalize(a)] = p.Name
	}
}

// SetFallback changes the pack used for unknown domains
func (r *Registry) SetFallback(name string) error {
	p, err := r.Get(name)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.fallback = p.Name
	r.mu.Unlock()
	return nil
}

// Get returns the pack for an explicit domain name or alias
func (r *Registry) Get(name string) (*Pack, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := normalize(name)
	if p, ok := r.packs[key]; ok {
		return p, nil
	}
	if target, ok := r.aliases[key]; ok {
		if p, ok := r.packs[target]; ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, name)
}

// Lookup returns the pack for a domain, falling back to the generic pack
func (r *Registry) Lookup(name string) *Pack {
	if p, err := r.Get(name); err == nil {
		return p
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.packs[r.fallback]
}

// Names returns the registered pack names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.packs))
	for name := range r.packs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Packs returns the registered packs sorted by name
func (r *Registry) Packs() []*Pack {
	names := r.Names()
	out := make([]*Pack, 0, len(names))
	for _, n := range names {
		if p, err := r.Get(n); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "_", "-")
	n = strings.ReplaceAll(n, " ", "-")
	return n
}
