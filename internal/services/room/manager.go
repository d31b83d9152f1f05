// Package room streams live room instances in and out of memory. It builds a
// node's geometry on demand, attaches a fresh encounter and evicts rooms that
// fall outside the retention window.
package room

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/tools/selectables"
	"golang.org/x/sync/singleflight"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
	"github.com/KirkDiggler/rpg-dungeon/internal/events"
	"github.com/KirkDiggler/rpg-dungeon/internal/orchestrators/encounter"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/idgen"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/random"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/roompool"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/topology"
)

// Failure reasons attached to manager errors
const (
	ReasonTemplateMissing = "template_missing"
	ReasonRefused         = "refused"
)

// Service manages the live instances of a run
type Service interface {
	// Materialize returns the node's live instance, staging one if needed.
	// Concurrent calls for one node share a single staging run.
	Materialize(ctx context.Context, input *MaterializeInput) (*MaterializeOutput, error)
	// Release drops one pin taken by Materialize
	Release(nodeID string)
	// Evict destroys a live instance after copying its clear state to the node
	Evict(ctx context.Context, input *EvictInput) (*EvictOutput, error)
	// ApplyRetentionPolicy keeps the current room and the last rooms of the
	// history loaded and schedules eviction of everything else
	ApplyRetentionPolicy(ctx context.Context, input *RetentionInput) (*RetentionOutput, error)
	Instance(nodeID string) (*Instance, bool)
	LiveNodeIDs() []string
	Close(ctx context.Context) error
}

// Config holds the dependencies for the manager
type Config struct {
	Graph       *topology.Graph
	Templates   []*entities.RoomTemplate
	Roster      []*entities.HostileArchetype
	Builder     Builder
	NavMesh     NavMeshBaker
	EventBus    events.Bus
	Clock       clock.Clock
	IDGenerator idgen.Generator
	Rand        random.Source

	RoomSpacing float64
	// SettleDelay is waited after geometry is built, before the room is used
	SettleDelay time.Duration
	// StrictTemplates disables the any-template fallback
	StrictTemplates bool

	BaseRareRewardChance float64
	RareRewardPerFloor   float64
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config is required")
	}

	vb := errors.NewValidationBuilder()
	if c.Graph == nil {
		vb.RequiredField("Graph")
	}
	if len(c.Templates) == 0 {
		vb.RequiredField("Templates")
	}
	if c.Builder == nil {
		vb.RequiredField("Builder")
	}
	if c.NavMesh == nil {
		vb.RequiredField("NavMesh")
	}
	if c.EventBus == nil {
		vb.RequiredField("EventBus")
	}
	if c.Clock == nil {
		vb.RequiredField("Clock")
	}
	if c.IDGenerator == nil {
		vb.RequiredField("IDGenerator")
	}
	if c.Rand == nil {
		vb.RequiredField("Rand")
	}
	errors.ValidatePositive("RoomSpacing", c.RoomSpacing, vb)
	if c.SettleDelay < 0 {
		vb.Field("SettleDelay", "must not be negative")
	}
	if c.BaseRareRewardChance < 0 || c.BaseRareRewardChance > 1 {
		vb.Field("BaseRareRewardChance", "must be between 0 and 1")
	}
	return vb.Build()
}

// Manager is the in-process Service
type Manager struct {
	cfg   Config
	group singleflight.Group

	mu        sync.Mutex
	instances map[string]*Instance
	staging   map[string]chan struct{}
	flights   map[string]*flight
	pending   map[string]*pendingEviction
	pins      map[string]int
	current   string
	keep      map[string]bool
	closed    bool
}

type pendingEviction struct {
	timer clock.Timer
}

// flight is the shared staging context of one node. It is canceled once
// every caller waiting on it has given up.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewManager creates a room manager
func NewManager(cfg *Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &Manager{
		cfg:       *cfg,
		instances: make(map[string]*Instance),
		staging:   make(map[string]chan struct{}),
		flights:   make(map[string]*flight),
		pending:   make(map[string]*pendingEviction),
		pins:      make(map[string]int),
		keep:      make(map[string]bool),
	}, nil
}

var _ Service = (*Manager)(nil)

// MaterializeInput names the node to bring live
type MaterializeInput struct {
	NodeID string
	// Pin keeps the instance from being evicted until Release is called.
	// A pending delayed eviction of the node is canceled.
	Pin bool
}

// MaterializeOutput holds the live instance
type MaterializeOutput struct {
	Instance *Instance
	// Reused is true when the instance was already live
	Reused bool
}

// Materialize implements Service
func (m *Manager) Materialize(ctx context.Context, input *MaterializeInput) (*MaterializeOutput, error) {
	if input == nil || input.NodeID == "" {
		return nil, errors.InvalidArgument("node ID is required")
	}

	reused := true
	for {
		if inst, ok := m.claim(input.NodeID, input.Pin); ok {
			return &MaterializeOutput{Instance: inst, Reused: reused}, nil
		}

		out, err := m.join(ctx, input.NodeID)
		if err != nil {
			return nil, err
		}
		if !input.Pin {
			return out, nil
		}
		// a pinned caller stages again if the room was evicted before the claim
		reused = reused && out.Reused
	}
}

// claim returns the node's live instance and, when pin is set, pins it in
// the same critical section so no eviction can slip in between.
func (m *Manager) claim(nodeID string, pin bool) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[nodeID]
	if !ok || !pin {
		return inst, ok
	}
	m.pins[nodeID]++
	if p := m.pending[nodeID]; p != nil {
		p.timer.Stop()
		delete(m.pending, nodeID)
		slog.Debug("Canceled pending eviction of pinned room", "node_id", nodeID)
	}
	return inst, true
}

// Release implements Service
func (m *Manager) Release(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch n := m.pins[nodeID]; {
	case n > 1:
		m.pins[nodeID] = n - 1
	case n == 1:
		delete(m.pins, nodeID)
	}
}

// join waits on the node's shared staging run. A caller whose ctx ends stops
// waiting; the run itself is canceled only when its last waiter leaves, and
// that caller waits for the run to wind down.
func (m *Manager) join(ctx context.Context, nodeID string) (*MaterializeOutput, error) {
	for {
		f := m.enlist(ctx, nodeID)
		ch := m.group.DoChan(nodeID, func() (interface{}, error) {
			return m.stage(f.ctx, nodeID)
		})

		select {
		case res := <-ch:
			m.leave(nodeID, f)
			if res.Err != nil {
				if errors.IsCanceled(res.Err) && ctx.Err() == nil {
					// joined a run abandoned by everyone else
					continue
				}
				return nil, res.Err
			}
			if res.Shared {
				slog.Debug("Joined in-flight staging", "node_id", nodeID)
			}
			return res.Val.(*MaterializeOutput), nil
		case <-ctx.Done():
			if m.leave(nodeID, f) {
				<-ch
			}
			return nil, errors.FromContext(ctx.Err(), "staging canceled")
		}
	}
}

func (m *Manager) enlist(ctx context.Context, nodeID string) *flight {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := m.flights[nodeID]
	if f == nil {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		m.flights[nodeID] = f
	}
	f.waiters++
	return f
}

// leave reports whether the caller was the flight's last waiter
func (m *Manager) leave(nodeID string, f *flight) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return false
	}
	if m.flights[nodeID] == f {
		delete(m.flights, nodeID)
	}
	f.cancel()
	return true
}

func (m *Manager) stage(ctx context.Context, nodeID string) (*MaterializeOutput, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.Unavailable("room manager is closed")
	}
	if inst, ok := m.instances[nodeID]; ok {
		m.mu.Unlock()
		return &MaterializeOutput{Instance: inst, Reused: true}, nil
	}
	done := make(chan struct{})
	m.staging[nodeID] = done
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.staging, nodeID)
		m.mu.Unlock()
		close(done)
	}()

	node, err := m.cfg.Graph.Node(nodeID)
	if err != nil {
		return nil, err
	}

	template, degraded, err := m.resolveTemplate(node)
	if err != nil {
		return nil, err
	}

	inst := &Instance{
		ID:        m.cfg.IDGenerator.Generate(),
		NodeID:    node.ID,
		Floor:     node.Floor,
		RoomType:  node.Type(),
		Template:  template,
		Degraded:  degraded,
		Origin:    node.Position.World(m.cfg.RoomSpacing),
		CreatedAt: m.cfg.Clock.Now(),
	}

	built, err := m.cfg.Builder.Build(ctx, &BuildInput{
		InstanceID: inst.ID,
		Node:       node,
		Template:   template,
		Origin:     inst.Origin,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build room %s", node.ID)
	}
	inst.Handle = built.Handle

	if err := clock.Sleep(ctx, m.cfg.Clock, m.cfg.SettleDelay); err != nil {
		m.destroy(ctx, inst)
		return nil, errors.FromContext(err, "staging canceled while settling")
	}

	if node.RequiresClearing() && !node.Cleared {
		ok, err := m.cfg.NavMesh.Bake(ctx, &BakeInput{InstanceID: inst.ID, NodeID: node.ID, Handle: inst.Handle})
		if err != nil {
			m.destroy(ctx, inst)
			return nil, errors.Wrapf(err, "failed to bake navmesh for room %s", node.ID)
		}
		if !ok {
			slog.Warn("Navmesh bake returned no data", "node_id", node.ID, "instance_id", inst.ID)
		}
	}

	inst.Encounter, err = encounter.NewController(&encounter.Config{
		NodeID:           node.ID,
		Floor:            node.Floor,
		RoomType:         node.Type(),
		RequiresClearing: node.RequiresClearing(),
		Roster:           m.cfg.Roster,
		Origin:           inst.Origin,
		Roller:           random.NewRoller(m.cfg.Rand),
		Rand:             m.cfg.Rand,
		IDGenerator:      m.cfg.IDGenerator,
		EventBus:         m.cfg.EventBus,
		Cleared:          node.Cleared,
	})
	if err != nil {
		m.destroy(ctx, inst)
		return nil, errors.Wrap(err, "failed to create encounter")
	}

	for _, e := range m.cfg.Graph.NeighborsOf(node.ID) {
		inst.Portals = append(inst.Portals, Portal{EdgeID: e.ID, TargetID: e.TargetID, TargetType: e.TargetType})
	}

	if node.Type() == entities.RoomTypeReward {
		chance := roompool.RareRewardChance(m.cfg.BaseRareRewardChance, m.cfg.RareRewardPerFloor, node.Floor)
		inst.RareReward = m.cfg.Rand.Float64() < chance
	}

	if err := ctx.Err(); err != nil {
		m.destroy(ctx, inst)
		return nil, errors.FromContext(err, "staging canceled")
	}

	if err := m.cfg.Graph.LinkInstance(node.ID, inst.ID); err != nil {
		m.destroy(ctx, inst)
		return nil, err
	}

	m.mu.Lock()
	m.instances[node.ID] = inst
	m.mu.Unlock()

	slog.Info("Room materialized",
		"node_id", node.ID,
		"instance_id", inst.ID,
		"template", template.Name,
		"degraded", degraded,
		"portals", len(inst.Portals),
	)
	return &MaterializeOutput{Instance: inst}, nil
}

// resolveTemplate picks a template built for the node's room type, falling
// back to any template unless strict templates are configured.
func (m *Manager) resolveTemplate(node *entities.RoomNode) (*entities.RoomTemplate, bool, error) {
	roomType := node.Type()
	var compatible []*entities.RoomTemplate
	for _, t := range m.cfg.Templates {
		if t.Supports(roomType) {
			compatible = append(compatible, t)
		}
	}
	if len(compatible) > 0 {
		t, err := m.pickTemplate(compatible)
		return t, false, err
	}

	if m.cfg.StrictTemplates {
		return nil, false, errors.NotFoundf("no template supports room type %s", roomType).
			WithReason(ReasonTemplateMissing).
			WithMeta("node_id", node.ID)
	}

	t, err := m.pickTemplate(m.cfg.Templates)
	if err != nil {
		return nil, false, err
	}
	slog.Warn("No template for room type, using fallback",
		"node_id", node.ID,
		"room_type", roomType,
		"template", t.Name,
	)
	return t, true, nil
}

// templateWeightScale turns fractional template weights into table weights
const templateWeightScale = 100

func (m *Manager) pickTemplate(candidates []*entities.RoomTemplate) (*entities.RoomTemplate, error) {
	if len(candidates) == 0 {
		return nil, errors.NotFound("no room templates available").WithReason(ReasonTemplateMissing)
	}

	table := selectables.NewBasicTable[*entities.RoomTemplate](selectables.BasicTableConfig{ID: "room_templates"})
	for _, t := range candidates {
		table.Add(t, max(1, int(math.Round(t.Weight*templateWeightScale))))
	}

	t, err := table.Select(selectables.NewSelectionContextWithRoller(random.NewRoller(m.cfg.Rand)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to select room template")
	}
	return t, nil
}

func (m *Manager) destroy(ctx context.Context, inst *Instance) {
	err := m.cfg.Builder.Destroy(context.WithoutCancel(ctx), &DestroyInput{InstanceID: inst.ID, Handle: inst.Handle})
	if err != nil {
		slog.Warn("Failed to destroy room geometry",
			"node_id", inst.NodeID,
			"instance_id", inst.ID,
			"error", err,
		)
	}
}

// EvictInput names the node whose instance to destroy
type EvictInput struct {
	NodeID string
}

// EvictOutput reports what eviction did
type EvictOutput struct {
	// Evicted is false when the node had no live instance
	Evicted bool
	Cleared bool
}

// Evict implements Service. It refuses the node the actor occupies and waits
// for in-flight staging of the node to finish first.
func (m *Manager) Evict(ctx context.Context, input *EvictInput) (*EvictOutput, error) {
	if input == nil || input.NodeID == "" {
		return nil, errors.InvalidArgument("node ID is required")
	}
	nodeID := input.NodeID

	m.mu.Lock()
	if nodeID == m.current {
		m.mu.Unlock()
		return nil, errors.FailedPreconditionf("room %s is occupied", nodeID).WithReason(ReasonRefused)
	}
	done := m.staging[nodeID]
	m.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, errors.FromContext(ctx.Err(), "canceled waiting for staging")
		}
	}

	m.mu.Lock()
	if nodeID == m.current {
		m.mu.Unlock()
		return nil, errors.FailedPreconditionf("room %s is occupied", nodeID).WithReason(ReasonRefused)
	}
	if m.pins[nodeID] > 0 {
		m.mu.Unlock()
		return nil, errors.FailedPreconditionf("room %s is pinned", nodeID).WithReason(ReasonRefused)
	}
	inst, ok := m.instances[nodeID]
	if ok {
		delete(m.instances, nodeID)
	}
	if p := m.pending[nodeID]; p != nil {
		p.timer.Stop()
		delete(m.pending, nodeID)
	}
	m.mu.Unlock()

	if !ok {
		return &EvictOutput{}, nil
	}

	return m.teardown(ctx, inst)
}

func (m *Manager) teardown(ctx context.Context, inst *Instance) (*EvictOutput, error) {
	out := &EvictOutput{Evicted: true}
	if inst.Encounter != nil && inst.Encounter.Cleared() {
		if _, err := m.cfg.Graph.MarkCleared(inst.NodeID); err != nil {
			return nil, errors.Wrap(err, "failed to store clear state")
		}
		out.Cleared = true
	}

	m.destroy(ctx, inst)
	if err := m.cfg.Graph.UnlinkInstance(inst.NodeID, inst.ID); err != nil {
		return nil, errors.Wrap(err, "failed to unlink instance")
	}

	slog.Info("Room evicted",
		"node_id", inst.NodeID,
		"instance_id", inst.ID,
		"cleared", out.Cleared,
	)
	return out, nil
}

// RetentionInput describes the traversal state retention is applied to
type RetentionInput struct {
	History        []string
	CurrentNodeID  string
	RetentionCount int
	UnloadDelay    time.Duration
}

// RetentionOutput reports the outcome of a retention pass
type RetentionOutput struct {
	Kept      []string
	Scheduled []string
	Evicted   []string
}

// KeepSet returns the current node plus the last k distinct history entries
// other than it
func KeepSet(history []string, currentID string, k int) map[string]bool {
	keep := make(map[string]bool, k+1)
	if currentID != "" {
		keep[currentID] = true
	}
	others := 0
	for i := len(history) - 1; i >= 0 && others < k; i-- {
		id := history[i]
		if keep[id] {
			continue
		}
		keep[id] = true
		others++
	}
	return keep
}

// ApplyRetentionPolicy implements Service. Pinned rooms are kept. Scheduled
// evictions re-check at fire time against the latest current room, keep set
// and pins.
func (m *Manager) ApplyRetentionPolicy(ctx context.Context, input *RetentionInput) (*RetentionOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.RetentionCount < 0 {
		return nil, errors.InvalidArgumentf("retention count must not be negative, got %d", input.RetentionCount)
	}

	keep := KeepSet(input.History, input.CurrentNodeID, input.RetentionCount)
	out := &RetentionOutput{}

	m.mu.Lock()
	m.current = input.CurrentNodeID
	m.keep = keep

	for nodeID, p := range m.pending {
		if keep[nodeID] {
			p.timer.Stop()
			delete(m.pending, nodeID)
			slog.Debug("Canceled pending eviction", "node_id", nodeID)
		}
	}

	var victims []string
	for nodeID := range m.instances {
		if keep[nodeID] || m.pins[nodeID] > 0 {
			out.Kept = append(out.Kept, nodeID)
			continue
		}
		if m.pending[nodeID] == nil {
			victims = append(victims, nodeID)
		}
	}
	sort.Strings(out.Kept)
	sort.Strings(victims)

	if input.UnloadDelay > 0 {
		for _, nodeID := range victims {
			p := &pendingEviction{}
			id := nodeID
			p.timer = m.cfg.Clock.AfterFunc(input.UnloadDelay, func() { m.fireEviction(id, p) })
			m.pending[nodeID] = p
		}
		out.Scheduled = victims
		m.mu.Unlock()
		return out, nil
	}
	m.mu.Unlock()

	var errs []error
	for _, nodeID := range victims {
		res, err := m.Evict(ctx, &EvictInput{NodeID: nodeID})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res.Evicted {
			out.Evicted = append(out.Evicted, nodeID)
		}
	}
	if len(errs) > 0 {
		return out, errors.Wrap(errors.Join(errs...), "retention eviction failed")
	}
	return out, nil
}

func (m *Manager) fireEviction(nodeID string, p *pendingEviction) {
	m.mu.Lock()
	if m.pending[nodeID] != p {
		m.mu.Unlock()
		return
	}
	delete(m.pending, nodeID)
	if nodeID == m.current || m.keep[nodeID] || m.pins[nodeID] > 0 {
		m.mu.Unlock()
		slog.Debug("Skipping eviction of retained room", "node_id", nodeID)
		return
	}
	m.mu.Unlock()

	if _, err := m.Evict(context.Background(), &EvictInput{NodeID: nodeID}); err != nil {
		slog.Warn("Delayed eviction failed", "node_id", nodeID, "error", err)
	}
}

// Instance implements Service
func (m *Manager) Instance(nodeID string) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[nodeID]
	return inst, ok
}

// LiveNodeIDs implements Service
func (m *Manager) LiveNodeIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.instances))
	for id := range m.instances {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PendingEvictions returns the nodes with a scheduled eviction
func (m *Manager) PendingEvictions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.pending))
	for id := range m.pending {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close implements Service. It cancels pending evictions and tears down every
// instance, the current one included.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for id, p := range m.pending {
		p.timer.Stop()
		delete(m.pending, id)
	}
	live := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		live = append(live, inst)
	}
	m.instances = make(map[string]*Instance)
	m.pins = make(map[string]int)
	m.current = ""
	m.mu.Unlock()

	sort.Slice(live, func(i, j int) bool { return live[i].NodeID < live[j].NodeID })

	var errs []error
	for _, inst := range live {
		if _, err := m.teardown(ctx, inst); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
