package metricgen

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	Mo "github.com/maroda/metricgen/obvy"
	Ms "github.com/maroda/metricgen/server"
	Mt "github.com/maroda/metricgen/types"
)

// Status is the transient message shown after a user action
type Status struct {
	Text  string    `json:"text"`
	Error bool      `json:"error"`
	At    time.Time `json:"at"`
}

// Controller owns the UI state of the previews:
// the last confirmed parameters of every generator, the values shown
// while an adjustment is in flight, and the selected time windows.
// Everything it draws is drawn from these snapshots.
type Controller struct {
	MU         sync.RWMutex
	Collab     Ms.Collaborator
	Selections *Selections
	Targets    *Targets
	Stats      *Mo.StatsInternal

	confirmed map[string]Mt.WaveformParameters
	pending   map[string]Mt.WaveformParameters
	status    Status

	subMU       sync.Mutex
	subscribers map[string]chan Mt.Config
}

func NewController(c Ms.Collaborator, stats *Mo.StatsInternal) *Controller {
	return &Controller{
		Collab:      c,
		Selections:  NewSelections(),
		Targets:     NewTargets(),
		Stats:       stats,
		confirmed:   make(map[string]Mt.WaveformParameters),
		pending:     make(map[string]Mt.WaveformParameters),
		subscribers: make(map[string]chan Mt.Config),
	}
}

// Refresh replaces the confirmed snapshots with the collaborator's config,
// redraws every attached preview and notifies subscribers.
// Adjustments still in flight keep showing their pending value.
func (c *Controller) Refresh(ctx context.Context) error {
	start := time.Now()
	defer func() {
		if c.Stats != nil {
			c.Stats.RecRefreshTimer(time.Since(start).Seconds())
		}
	}()

	config, err := c.Collab.CurrentConfig(ctx)
	if err != nil {
		c.SetStatus("Could not load generators: "+err.Error(), true)
		return fmt.Errorf("refresh failed: %w", err)
	}

	fresh := make(map[string]Mt.WaveformParameters, len(config.Metrics))
	for name, p := range config.Metrics {
		fresh[Ms.StoredName(name)] = p
	}

	c.MU.Lock()
	c.confirmed = fresh
	for name := range c.pending {
		if _, ok := fresh[name]; !ok {
			delete(c.pending, name)
		}
	}
	c.MU.Unlock()

	c.RenderAll()
	c.publish(Mt.Config{Metrics: maps.Clone(fresh)})
	return nil
}

// Snapshot is what the UI shows for a generator right now
func (c *Controller) Snapshot(name string) (Mt.WaveformParameters, bool) {
	key := Ms.StoredName(name)
	c.MU.RLock()
	defer c.MU.RUnlock()
	if p, ok := c.pending[key]; ok {
		return p, true
	}
	p, ok := c.confirmed[key]
	return p, ok
}

// Confirmed is the last value the collaborator accepted
func (c *Controller) Confirmed(name string) (Mt.WaveformParameters, bool) {
	c.MU.RLock()
	defer c.MU.RUnlock()
	p, ok := c.confirmed[Ms.StoredName(name)]
	return p, ok
}

// Names lists known generators sorted by label
func (c *Controller) Names() []string {
	c.MU.RLock()
	names := make([]string, 0, len(c.confirmed))
	for name := range c.confirmed {
		names = append(names, name)
	}
	c.MU.RUnlock()
	Ms.SortNames(names)
	return names
}

// Render draws one generator onto its attached surface.
// The web client draws its own previews, so having nothing
// attached is normal there and the draw is skipped quietly.
func (c *Controller) Render(name string) bool {
	if _, ok := c.Targets.Lookup(PreviewKey(name)); !ok {
		slog.Debug("No preview attached", slog.String("name", name))
		return false
	}
	p, ok := c.Snapshot(name)
	if !ok {
		slog.Warn("No parameters for preview", slog.String("name", name))
		return false
	}
	return RenderTarget(c.Targets, name, p, c.Selections.Window(name))
}

func (c *Controller) RenderAll() {
	for _, name := range c.Names() {
		c.Render(name)
	}
}

// SelectWindow records the window for a generator and redraws its preview
// from the current snapshot. The parameters are not touched.
func (c *Controller) SelectWindow(name string, window float64) error {
	if err := c.Selections.Select(name, window); err != nil {
		c.SetStatus(err.Error(), true)
		return err
	}
	c.Render(name)
	return nil
}

// AdjustParameter steps one parameter of a generator in two phases.
// The stepped value is shown and drawn at once, then sent to the collaborator.
// On success it becomes the confirmed value, on failure the preview
// reverts to the last confirmed snapshot and the error is returned.
func (c *Controller) AdjustParameter(ctx context.Context, name, param string, delta float64) (Mt.WaveformParameters, error) {
	key := Ms.StoredName(name)

	policy, err := Ms.PolicyLookup(param)
	if err != nil {
		return Mt.WaveformParameters{}, err
	}

	c.MU.Lock()
	confirmed, ok := c.confirmed[key]
	if !ok {
		c.MU.Unlock()
		c.SetStatus(Ms.ErrGeneratorNotFound.Error(), true)
		return Mt.WaveformParameters{}, Ms.ErrGeneratorNotFound
	}
	shown := confirmed
	if p, ok := c.pending[key]; ok {
		shown = p
	}

	current, _ := Ms.ParamValue(shown, param)
	next := policy.Apply(current, delta)
	update, _ := Ms.SetParam(param, next)
	local := Ms.ApplyUpdate(shown, update)
	c.pending[key] = local
	c.MU.Unlock()

	c.Render(key)

	if err := c.Collab.UpdateGenerator(ctx, key, update); err != nil {
		c.MU.Lock()
		if c.pending[key] == local {
			delete(c.pending, key)
		}
		c.MU.Unlock()
		c.Render(key)

		slog.Error("Adjustment rejected",
			slog.String("name", key),
			slog.String("param", param),
			slog.Any("Error", err))
		c.SetStatus("Error updating metric parameter: "+err.Error(), true)
		return confirmed, err
	}

	c.MU.Lock()
	// a newer adjustment may already be pending, it keeps priority for display
	if base, ok := c.confirmed[key]; ok {
		c.confirmed[key] = Ms.ApplyUpdate(base, update)
	}
	if c.pending[key] == local {
		delete(c.pending, key)
	}
	c.MU.Unlock()
	c.Render(key)

	c.SetStatus(fmt.Sprintf("%s %s = %s", Ms.DisplayName(key), param, policy.Format(next)), false)
	return local, nil
}

func (c *Controller) SetStatus(text string, isErr bool) {
	c.MU.Lock()
	defer c.MU.Unlock()
	c.status = Status{Text: text, Error: isErr, At: time.Now()}
}

// CurrentStatus returns the status if it is younger than maxAge
func (c *Controller) CurrentStatus(maxAge time.Duration) (Status, bool) {
	c.MU.RLock()
	defer c.MU.RUnlock()
	if c.status.Text == "" || time.Since(c.status.At) > maxAge {
		return Status{}, false
	}
	return c.status, true
}

// Subscribe registers id for a config snapshot after every refresh.
// Slow subscribers miss snapshots instead of blocking the refresh.
func (c *Controller) Subscribe(id string) <-chan Mt.Config {
	ch := make(chan Mt.Config, 1)
	c.subMU.Lock()
	c.subscribers[id] = ch
	c.subMU.Unlock()
	return ch
}

func (c *Controller) Unsubscribe(id string) {
	c.subMU.Lock()
	defer c.subMU.Unlock()
	if ch, ok := c.subscribers[id]; ok {
		close(ch)
		delete(c.subscribers, id)
	}
}

func (c *Controller) publish(config Mt.Config) {
	c.subMU.Lock()
	defer c.subMU.Unlock()
	for id, ch := range c.subscribers {
		select {
		case ch <- config:
		default:
			slog.Debug("Subscriber busy, snapshot dropped", slog.String("client", id))
		}
	}
}
