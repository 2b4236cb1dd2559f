package metricgen

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	Mo "github.com/maroda/metricgen/obvy"
	Mp "github.com/maroda/metricgen/plugin"
	Mt "github.com/maroda/metricgen/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Collaborator is the configuration service the preview side is driven by.
// Names may be given with or without the generator prefix.
// A collaborator that answers success:false returns a *RejectedError.
type Collaborator interface {
	CurrentConfig(ctx context.Context) (Mt.Config, error)
	CreateGenerator(ctx context.Context, name string, p Mt.WaveformParameters) error
	UpdateGenerator(ctx context.Context, name string, u Mt.ParameterUpdate) error
	RemoveGenerator(ctx context.Context, name string) error
}

// Registry is the in-process Collaborator.
// It owns the generator definitions, persists them to a ConfigStore
// and runs one emitter per generator that keeps a prometheus gauge current.
type Registry struct {
	MU      sync.RWMutex
	Metrics map[string]Mt.WaveformParameters // keyed by stored (prefixed) name
	Store   Mp.ConfigStore
	Stats   *Mo.StatsInternal
	Now     func() time.Time // clock used by the emitters

	emitters map[string]*Emitter
	wg       sync.WaitGroup
}

// Emitter is the running half of a generator
type Emitter struct {
	Name     string
	Gauge    prometheus.Gauge
	StopChan chan struct{}
}

func NewRegistry(store Mp.ConfigStore, stats *Mo.StatsInternal) *Registry {
	return &Registry{
		Metrics:  make(map[string]Mt.WaveformParameters),
		Store:    store,
		Stats:    stats,
		Now:      time.Now,
		emitters: make(map[string]*Emitter),
	}
}

// Restore loads every stored generator and starts its emitter.
// Legacy names without the generator prefix are re-added with it
// and the store is rewritten.
func (r *Registry) Restore() error {
	stored, err := r.Store.Load()
	if err != nil {
		return fmt.Errorf("could not load generators from %s: %w", r.Store.Type(), err)
	}

	r.MU.Lock()
	defer r.MU.Unlock()

	renamed := false
	for name, p := range stored {
		full := StoredName(name)
		if full != name {
			renamed = true
			if r.Stats != nil {
				r.Stats.MetricsTotal.Inc()
			}
		}
		if _, ok := r.Metrics[full]; ok {
			slog.Warn("Duplicate generator in store, skipping", slog.String("name", name))
			continue
		}
		r.Metrics[full] = p
		if err := r.startEmitter(full); err != nil {
			slog.Error("Could not start generator", slog.String("name", full), slog.Any("Error", err))
			delete(r.Metrics, full)
		}
	}

	slog.Info("Generators restored",
		slog.Int("count", len(r.Metrics)),
		slog.String("store", r.Store.Type()))

	if renamed {
		return r.Store.Save(r.snapshot())
	}
	return nil
}

func (r *Registry) CurrentConfig(_ context.Context) (Mt.Config, error) {
	r.MU.RLock()
	defer r.MU.RUnlock()
	return Mt.Config{Metrics: r.snapshot()}, nil
}

// Params is the current definition of a single generator
func (r *Registry) Params(name string) (Mt.WaveformParameters, bool) {
	r.MU.RLock()
	defer r.MU.RUnlock()
	p, ok := r.Metrics[StoredName(name)]
	return p, ok
}

func (r *Registry) CreateGenerator(_ context.Context, name string, p Mt.WaveformParameters) error {
	bare := BackendName(name)
	if !ValidName(bare) {
		return fmt.Errorf("%w: name %q must use letters, digits and underscores", ErrInvalidParameters, bare)
	}
	if err := Validate(p); err != nil {
		return err
	}

	full := StoredName(name)

	r.MU.Lock()
	defer r.MU.Unlock()

	if _, ok := r.Metrics[full]; ok {
		return ErrGeneratorExists
	}

	next := r.snapshot()
	next[full] = p
	if err := r.Store.Save(next); err != nil {
		return fmt.Errorf("could not save generator %s: %w", full, err)
	}

	r.Metrics[full] = p
	if err := r.startEmitter(full); err != nil {
		delete(r.Metrics, full)
		if serr := r.Store.Save(r.snapshot()); serr != nil {
			slog.Error("Could not roll back store", slog.Any("Error", serr))
		}
		return err
	}

	if r.Stats != nil {
		r.Stats.MetricsTotal.Inc()
	}
	slog.Info("Generator created", slog.String("name", full), slog.String("waveform", string(p.WaveformType)))
	return nil
}

// UpdateGenerator applies only the provided fields.
// A running emitter reads the new values on its next tick.
func (r *Registry) UpdateGenerator(_ context.Context, name string, u Mt.ParameterUpdate) error {
	full := StoredName(name)

	r.MU.Lock()
	defer r.MU.Unlock()

	current, ok := r.Metrics[full]
	if !ok {
		return ErrGeneratorNotFound
	}

	updated := ApplyUpdate(current, u)
	if err := Validate(updated); err != nil {
		return err
	}

	next := r.snapshot()
	next[full] = updated
	if err := r.Store.Save(next); err != nil {
		return fmt.Errorf("could not save generator %s: %w", full, err)
	}
	r.Metrics[full] = updated

	slog.Debug("Generator updated", slog.String("name", full), slog.Any("params", updated))
	return nil
}

func (r *Registry) RemoveGenerator(_ context.Context, name string) error {
	full := StoredName(name)

	r.MU.Lock()
	defer r.MU.Unlock()

	if _, ok := r.Metrics[full]; !ok {
		return ErrGeneratorNotFound
	}

	next := r.snapshot()
	delete(next, full)
	if err := r.Store.Save(next); err != nil {
		return fmt.Errorf("could not save store without %s: %w", full, err)
	}
	delete(r.Metrics, full)
	r.stopEmitter(full)

	slog.Info("Generator removed", slog.String("name", full))
	return nil
}

// Names lists the stored generator names, sorted
func (r *Registry) Names() []string {
	r.MU.RLock()
	defer r.MU.RUnlock()
	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	SortNames(names)
	return names
}

// Close stops every emitter and waits for them to exit
func (r *Registry) Close() {
	r.MU.Lock()
	for name := range r.emitters {
		r.stopEmitter(name)
	}
	r.MU.Unlock()
	r.wg.Wait()
}

// snapshot copies the definitions, callers hold the lock
func (r *Registry) snapshot() map[string]Mt.WaveformParameters {
	return maps.Clone(r.Metrics)
}

// startEmitter registers the gauge and runs the emit loop, callers hold the lock
func (r *Registry) startEmitter(name string) error {
	if _, ok := r.emitters[name]; ok {
		return nil
	}

	var gauge prometheus.Gauge
	if r.Stats != nil {
		g, err := r.Stats.AddGauge(name)
		if err != nil {
			return err
		}
		gauge = g
	}

	e := &Emitter{
		Name:     name,
		Gauge:    gauge,
		StopChan: make(chan struct{}),
	}
	r.emitters[name] = e

	r.wg.Add(1)
	go r.emit(e)
	return nil
}

// stopEmitter signals the loop and drops the gauge, callers hold the lock
func (r *Registry) stopEmitter(name string) {
	e, ok := r.emitters[name]
	if !ok {
		return
	}
	close(e.StopChan)
	delete(r.emitters, name)
	if r.Stats != nil {
		r.Stats.RemoveGauge(name)
	}
}

// emit sets the gauge to the waveform value at the current Unix time,
// then sleeps for the generator's update interval.
func (r *Registry) emit(e *Emitter) {
	defer r.wg.Done()

	for {
		p, ok := r.Params(e.Name)
		if !ok {
			return
		}

		value := Evaluate(p, UnixSeconds(r.Now()))
		if e.Gauge != nil {
			e.Gauge.Set(value)
		}

		timer := time.NewTimer(IntervalDuration(p.UpdateInterval))
		select {
		case <-e.StopChan:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// UnixSeconds is t as fractional seconds since the epoch
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// IntervalDuration converts an update interval in seconds,
// anything not positive runs at one second and nothing runs
// faster than MinUpdateInterval.
func IntervalDuration(seconds float64) time.Duration {
	if !(seconds > 0) {
		return time.Second
	}
	d := time.Duration(seconds * float64(time.Second))
	return max(d, time.Duration(MinUpdateInterval*float64(time.Second)))
}

// SortNames orders generator names by their display label
func SortNames(names []string) {
	slices.SortFunc(names, func(a, b string) int {
		return strings.Compare(DisplayName(a), DisplayName(b))
	})
}
