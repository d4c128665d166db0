package engine

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// FactorySpec describes a factory installed in a Memory engine.
type FactorySpec struct {
	Name string
	// Properties, when non-nil, restricts settable properties to these keys
	// and provides their defaults.
	Properties map[string]any
	// Balance makes instances expose these color channels.
	Balance []BalanceChannel
	// Overlay makes instances accept a window handle.
	Overlay bool
	// Children makes instances composite. Each child is instantiated under
	// its spec Name as both factory and element name.
	Children []FactorySpec
	// RefuseLinks makes every link to or from an instance fail.
	RefuseLinks bool
}

// Link records one successful link.
type Link struct {
	Upstream   string
	Downstream string
}

type memLink struct {
	up, down *memStage
}

// Memory is an in-process Engine. It tracks every live stage so tests can
// assert that probes and failed builds release what they create.
type Memory struct {
	mu           sync.Mutex
	factories    map[string]FactorySpec
	live         map[*memStage]struct{}
	links        []memLink
	instantiated map[string]int
	bus          *Bus
	namer        Namer
}

// NewMemory creates an engine with the given factories installed.
func NewMemory(specs ...FactorySpec) *Memory {
	m := &Memory{
		factories:    make(map[string]FactorySpec),
		live:         make(map[*memStage]struct{}),
		instantiated: make(map[string]int),
		bus:          NewBus(nil),
	}
	for _, spec := range specs {
		m.Register(spec)
	}
	return m
}

// Register installs or replaces a factory.
func (m *Memory) Register(spec FactorySpec) {
	m.mu.Lock()
	m.factories[spec.Name] = spec
	m.mu.Unlock()
}

// Unregister removes a factory. Existing instances are unaffected.
func (m *Memory) Unregister(name string) {
	m.mu.Lock()
	delete(m.factories, name)
	m.mu.Unlock()
}

// Has reports whether factory is installed.
func (m *Memory) Has(factory string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.factories[factory]
	return ok
}

// Factories lists installed factory names in sorted order.
func (m *Memory) Factories() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.factories))
}

func (m *Memory) Bus() *Bus      { return m.bus }
func (m *Memory) Namer() *Namer { return &m.namer }

// Instantiate creates a stage from an installed factory.
func (m *Memory) Instantiate(factory, name string) (Stage, bool) {
	m.mu.Lock()
	spec, ok := m.factories[factory]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	return m.build(spec, name), true
}

func (m *Memory) build(spec FactorySpec, name string) Stage {
	base := &memStage{
		engine:   m,
		name:     name,
		spec:     spec,
		props:    make(map[string]any),
		contexts: make(map[string]any),
	}
	for k, v := range spec.Properties {
		base.props[k] = v
	}

	m.mu.Lock()
	m.live[base] = struct{}{}
	m.instantiated[spec.Name]++
	m.mu.Unlock()

	switch {
	case len(spec.Children) > 0:
		bin := &binStage{memStage: base}
		for _, child := range spec.Children {
			bin.children = append(bin.children, m.build(child, child.Name))
		}
		base.release = bin.releaseChildren
		return bin
	case len(spec.Balance) > 0:
		bs := &balanceStage{memStage: base, values: make(map[string]int)}
		for _, ch := range spec.Balance {
			bs.values[ch.Label] = ch.Midpoint()
		}
		return bs
	case spec.Overlay:
		return &overlayStage{memStage: base}
	default:
		return base
	}
}

// Link connects two live stages.
func (m *Memory) Link(upstream, downstream Stage) error {
	up, upOK := unwrap(upstream)
	down, downOK := unwrap(downstream)
	if !upOK || !downOK {
		return fmt.Errorf("%w: foreign stage", ErrLinkRefused)
	}
	if up.isReleased() || down.isReleased() {
		return fmt.Errorf("%w: %s -> %s", ErrReleased, upstream.Name(), downstream.Name())
	}
	if up.spec.RefuseLinks || down.spec.RefuseLinks {
		return fmt.Errorf("%w: %s -> %s", ErrLinkRefused, upstream.Name(), downstream.Name())
	}

	m.mu.Lock()
	m.links = append(m.links, memLink{up: up, down: down})
	m.mu.Unlock()
	return nil
}

// Live returns how many stages are instantiated and not yet released.
func (m *Memory) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Instantiated returns how many times factory was instantiated.
func (m *Memory) Instantiated(factory string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instantiated[factory]
}

// Links returns the links between live stages in the order they were made.
func (m *Memory) Links() []Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Link, 0, len(m.links))
	for _, l := range m.links {
		out = append(out, Link{Upstream: l.up.name, Downstream: l.down.name})
	}
	return out
}

// forget drops a released stage and every link touching it.
func (m *Memory) forget(s *memStage) {
	m.mu.Lock()
	delete(m.live, s)
	m.links = slices.DeleteFunc(m.links, func(l memLink) bool {
		return l.up == s || l.down == s
	})
	m.mu.Unlock()
}

type memStage struct {
	engine *Memory
	name   string
	spec   FactorySpec

	mu       sync.Mutex
	props    map[string]any
	contexts map[string]any
	released bool
	release  func()
}

func unwrap(s Stage) (*memStage, bool) {
	switch v := s.(type) {
	case *memStage:
		return v, true
	case *balanceStage:
		return v.memStage, true
	case *overlayStage:
		return v.memStage, true
	case *binStage:
		return v.memStage, true
	default:
		return nil, false
	}
}

func (s *memStage) Name() string    { return s.name }
func (s *memStage) Factory() string { return s.spec.Name }

func (s *memStage) Set(property string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return fmt.Errorf("%w: %s", ErrReleased, s.name)
	}
	if s.spec.Properties != nil {
		if _, ok := s.spec.Properties[property]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownProperty, s.spec.Name, property)
		}
	}
	s.props[property] = value
	return nil
}

func (s *memStage) Get(property string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.props[property]
	return v, ok
}

func (s *memStage) Properties() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.props)
}

func (s *memStage) SetContext(contextType string, value any) {
	s.mu.Lock()
	s.contexts[contextType] = value
	s.mu.Unlock()
}

func (s *memStage) Context(contextType string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.contexts[contextType]
	return v, ok
}

func (s *memStage) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	release := s.release
	s.mu.Unlock()

	if release != nil {
		release()
	}
	s.engine.forget(s)
}

func (s *memStage) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

type balanceStage struct {
	*memStage
	values map[string]int
}

func (b *balanceStage) BalanceChannels() []BalanceChannel {
	return slices.Clone(b.spec.Balance)
}

func (b *balanceStage) SetBalance(label string, value int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.values[label]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, label)
	}
	b.values[label] = value
	return nil
}

func (b *balanceStage) Balance(label string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[label]
	return v, ok
}

type overlayStage struct {
	*memStage
	handle uintptr
}

func (o *overlayStage) SetWindowHandle(handle uintptr) {
	o.mu.Lock()
	o.handle = handle
	o.mu.Unlock()
}

func (o *overlayStage) WindowHandle() uintptr {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.handle
}

type binStage struct {
	*memStage
	children []Stage
}

func (b *binStage) Children() []Stage {
	return slices.Clone(b.children)
}

func (b *binStage) ByName(name string) (Stage, bool) {
	var found Stage
	for _, child := range b.children {
		Walk(child, func(s Stage) {
			if found == nil && s.Name() == name {
				found = s
			}
		})
	}
	return found, found != nil
}

func (b *binStage) releaseChildren() {
	for _, child := range b.children {
		child.Release()
	}
}
