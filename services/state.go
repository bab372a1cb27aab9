package services

import (
	"fmt"
	"time"

	"modbot-keeper/internal/logger"
)

// SnapshotKind 每个组件名对应一个静态已知的快照变体
type SnapshotKind string

const (
	SnapGeneric    SnapshotKind = "generic"
	SnapGateway    SnapshotKind = "gateway"
	SnapAntiRaid   SnapshotKind = "antiraid"
	SnapPIIMonitor SnapshotKind = "piimonitor"
)

// snapshotKindFor 组件名到快照变体的静态映射，未列出的组件用通用变体
var snapshotKinds = map[string]SnapshotKind{
	"gateway":    SnapGateway,
	"antiraid":   SnapAntiRaid,
	"piimonitor": SnapPIIMonitor,
}

func snapshotKindFor(name string) SnapshotKind {
	if kind, ok := snapshotKinds[name]; ok {
		return kind
	}
	return SnapGeneric
}

/**
 * Snapshot of one component's mutable state, taken immediately before
 * its reload hook runs and merged back right after
 * @property {SnapshotKind} kind - Statically known variant for the component
 * @description
 * - Generic sections (config/data/cache/timers/connections) are captured
 *   only when the component implements the matching holder interface
 * - Extension sections belong to exactly one kind and stay nil otherwise
 * - Single-use: consumed and discarded within one reload batch
 */
type Snapshot struct {
	Component string
	Kind      SnapshotKind

	Config      map[string]interface{}
	Data        map[string]interface{}
	Cache       map[string]interface{}
	Timers      map[string]time.Time
	Connections map[string]string

	// gateway扩展
	Connected  bool
	HasGateway bool
	Outbox     []string

	// antiraid扩展
	Cooldowns map[string]time.Time
	Scores    map[string]int

	// piimonitor扩展
	Watchlist map[string]bool
}

/**
 * State engine snapshots a component's mutable state before reload and
 * merges it back afterward
 * @description
 * - Owned by a single orchestrator instance, never a package global
 * - A preserve failure substitutes the per-kind default snapshot
 *   instead of aborting the batch
 * - Every snapshot is validated before being trusted; an invalid one
 *   is replaced by the default so corrupted state never crosses a
 *   reload boundary
 */
type StateEngine struct {
	preserved map[string]*Snapshot
}

func NewStateEngine() *StateEngine {
	return &StateEngine{
		preserved: make(map[string]*Snapshot),
	}
}

/**
 * Preserve component state ahead of its reload
 * @param {string} name - Component name
 * @param {Component} comp - Component instance
 * @description
 * - Copies every state section the component exposes
 * - On panic while copying, substitutes the hardcoded per-kind default
 * - The snapshot replaces any stale entry for the same component
 */
func (se *StateEngine) Preserve(name string, comp Component) {
	snap := se.capture(name, comp)
	if err := snap.Validate(); err != nil {
		logger.Warnf("Snapshot for '%s' failed validation (%v), using defaults", name, err)
		snap = DefaultSnapshot(name)
	}
	se.preserved[name] = snap
}

func (se *StateEngine) capture(name string, comp Component) (snap *Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Preserving state of '%s' panicked: %v, using defaults", name, r)
			snap = DefaultSnapshot(name)
		}
	}()

	snap = &Snapshot{
		Component: name,
		Kind:      snapshotKindFor(name),
	}
	if h, ok := comp.(ConfigHolder); ok {
		snap.Config = copyAnyMap(h.Config())
	}
	if h, ok := comp.(DataHolder); ok {
		snap.Data = copyAnyMap(h.Data())
	}
	if h, ok := comp.(CacheHolder); ok {
		snap.Cache = copyAnyMap(h.Cache())
	}
	if h, ok := comp.(TimerHolder); ok {
		snap.Timers = copyTimeMap(h.Timers())
	}
	if h, ok := comp.(ConnectionHolder); ok {
		snap.Connections = copyStringMap(h.Connections())
	}
	switch snap.Kind {
	case SnapGateway:
		h, ok := comp.(GatewayState)
		if !ok {
			panic(fmt.Sprintf("component '%s' lacks gateway state surface", name))
		}
		snap.Connected = h.Connected()
		snap.HasGateway = true
		snap.Outbox = append([]string{}, h.Outbox()...)
	case SnapAntiRaid:
		h, ok := comp.(AntiRaidState)
		if !ok {
			panic(fmt.Sprintf("component '%s' lacks antiraid state surface", name))
		}
		snap.Cooldowns = copyTimeMap(h.Cooldowns())
		snap.Scores = copyIntMap(h.Scores())
	case SnapPIIMonitor:
		h, ok := comp.(MonitorState)
		if !ok {
			panic(fmt.Sprintf("component '%s' lacks monitor state surface", name))
		}
		snap.Watchlist = copyBoolMap(h.Watchlist())
	}
	return snap
}

/**
 * Restore preserved state into the component after its reload
 * @param {string} name - Component name
 * @param {Component} comp - Freshly reloaded component instance
 * @description
 * - Merges additively: preserved entries win, keys introduced by the
 *   reload itself survive
 * - A section is merged only when both snapshot and instance carry it,
 *   so shape mismatches never clobber fresh state
 * - The preserved entry is cleared once restored
 */
func (se *StateEngine) Restore(name string, comp Component) {
	snap, ok := se.preserved[name]
	if !ok {
		return
	}
	defer delete(se.preserved, name)

	if h, ok := comp.(ConfigHolder); ok && snap.Config != nil {
		h.SetConfig(mergeAnyMap(h.Config(), snap.Config))
	}
	if h, ok := comp.(DataHolder); ok && snap.Data != nil {
		h.SetData(mergeAnyMap(h.Data(), snap.Data))
	}
	if h, ok := comp.(CacheHolder); ok && snap.Cache != nil {
		h.SetCache(mergeAnyMap(h.Cache(), snap.Cache))
	}
	if h, ok := comp.(TimerHolder); ok && snap.Timers != nil {
		h.SetTimers(mergeTimeMap(h.Timers(), snap.Timers))
	}
	if h, ok := comp.(ConnectionHolder); ok && snap.Connections != nil {
		h.SetConnections(mergeStringMap(h.Connections(), snap.Connections))
	}
	switch snap.Kind {
	case SnapGateway:
		if h, ok := comp.(GatewayState); ok && snap.HasGateway {
			h.SetConnected(snap.Connected)
			h.SetOutbox(append(snap.Outbox, h.Outbox()...))
		}
	case SnapAntiRaid:
		if h, ok := comp.(AntiRaidState); ok {
			h.SetCooldowns(mergeTimeMap(h.Cooldowns(), snap.Cooldowns))
			h.SetScores(mergeIntMap(h.Scores(), snap.Scores))
		}
	case SnapPIIMonitor:
		if h, ok := comp.(MonitorState); ok {
			h.SetWatchlist(mergeBoolMap(h.Watchlist(), snap.Watchlist))
		}
	}
	logger.Debugf("Restored preserved state of '%s'", name)
}

// Discard 丢弃某组件的快照；重载失败后调用，保证快照单次使用
func (se *StateEngine) Discard(name string) {
	delete(se.preserved, name)
}

// Preserved 查询某组件当前是否有未消费的快照
func (se *StateEngine) Preserved(name string) bool {
	_, ok := se.preserved[name]
	return ok
}

/**
 * Validate snapshot shape before trusting it
 * @returns {error} Returns error describing the first violation, nil if valid
 * @description
 * - Exhaustive per-kind check of the extension sections
 * - Kind must be one of the statically known variants
 */
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("nil snapshot")
	}
	if s.Component == "" {
		return fmt.Errorf("snapshot without component name")
	}
	switch s.Kind {
	case SnapGeneric:
		return nil
	case SnapGateway:
		if !s.HasGateway {
			return fmt.Errorf("gateway snapshot missing connectivity section")
		}
		return nil
	case SnapAntiRaid:
		if s.Cooldowns == nil || s.Scores == nil {
			return fmt.Errorf("antiraid snapshot missing cooldowns or scores")
		}
		return nil
	case SnapPIIMonitor:
		if s.Watchlist == nil {
			return fmt.Errorf("piimonitor snapshot missing watchlist")
		}
		return nil
	default:
		return fmt.Errorf("unknown snapshot kind '%s'", s.Kind)
	}
}

/**
 * Hardcoded per-component default snapshot, used when preservation
 * fails or the captured snapshot does not validate
 */
func DefaultSnapshot(name string) *Snapshot {
	snap := &Snapshot{
		Component: name,
		Kind:      snapshotKindFor(name),
	}
	switch snap.Kind {
	case SnapGateway:
		snap.HasGateway = true
		snap.Connected = false
		snap.Outbox = []string{}
	case SnapAntiRaid:
		snap.Cooldowns = map[string]time.Time{}
		snap.Scores = map[string]int{}
	case SnapPIIMonitor:
		snap.Watchlist = map[string]bool{}
	}
	return snap
}

func copyAnyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyStringMap(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyTimeMap(src map[string]time.Time) map[string]time.Time {
	if src == nil {
		return nil
	}
	dst := make(map[string]time.Time, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyIntMap(src map[string]int) map[string]int {
	if src == nil {
		return nil
	}
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyBoolMap(src map[string]bool) map[string]bool {
	if src == nil {
		return nil
	}
	dst := make(map[string]bool, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// merge*Map 保留值优先，同时保留重载过程中新引入的键
func mergeAnyMap(current, preserved map[string]interface{}) map[string]interface{} {
	merged := copyAnyMap(current)
	if merged == nil {
		merged = make(map[string]interface{}, len(preserved))
	}
	for k, v := range preserved {
		merged[k] = v
	}
	return merged
}

func mergeStringMap(current, preserved map[string]string) map[string]string {
	merged := copyStringMap(current)
	if merged == nil {
		merged = make(map[string]string, len(preserved))
	}
	for k, v := range preserved {
		merged[k] = v
	}
	return merged
}

func mergeTimeMap(current, preserved map[string]time.Time) map[string]time.Time {
	merged := copyTimeMap(current)
	if merged == nil {
		merged = make(map[string]time.Time, len(preserved))
	}
	for k, v := range preserved {
		merged[k] = v
	}
	return merged
}

func mergeIntMap(current, preserved map[string]int) map[string]int {
	merged := copyIntMap(current)
	if merged == nil {
		merged = make(map[string]int, len(preserved))
	}
	for k, v := range preserved {
		merged[k] = v
	}
	return merged
}

func mergeBoolMap(current, preserved map[string]bool) map[string]bool {
	merged := copyBoolMap(current)
	if merged == nil {
		merged = make(map[string]bool, len(preserved))
	}
	for k, v := range preserved {
		merged[k] = v
	}
	return merged
}
