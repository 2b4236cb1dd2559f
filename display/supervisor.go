package metricgen

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultRefresh is how often the collaborator config is polled
const DefaultRefresh = 5 * time.Second

// RefreshSupervisor polls the collaborator on a fixed interval
// and refreshes the Controller until stopped.
type RefreshSupervisor struct {
	Controller *Controller
	Interval   time.Duration
	Ticker     *time.Ticker
	StopChan   chan struct{}
	WG         sync.WaitGroup

	cancel context.CancelFunc
}

// NewRefreshSupervisor wraps the Controller with a refresh loop
func (c *Controller) NewRefreshSupervisor(interval time.Duration) *RefreshSupervisor {
	if interval <= 0 {
		interval = DefaultRefresh
	}
	return &RefreshSupervisor{
		Controller: c,
		Interval:   interval,
	}
}

// Start the RefreshSupervisor.
// A refresh still in flight at Stop has its context cancelled.
func (p *RefreshSupervisor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.StopChan = make(chan struct{})
	p.Ticker = time.NewTicker(p.Interval)

	p.WG.Add(1)
	go func() {
		defer p.WG.Done()
		defer p.Ticker.Stop()

		for {
			select {
			case <-p.Ticker.C:
				if err := p.Controller.Refresh(ctx); err != nil {
					// Only log the error, the next tick tries again
					slog.Error("Failed to refresh", slog.Any("Error", err))
				}
			case <-p.StopChan:
				return
			}
		}
	}()
}

// Stop the RefreshSupervisor and wait for the loop to exit
func (p *RefreshSupervisor) Stop() {
	if p.StopChan != nil {
		p.cancel()
		close(p.StopChan)
		p.WG.Wait()
		p.StopChan = nil
	}
}

// Restart the RefreshSupervisor
func (p *RefreshSupervisor) Restart() {
	p.Stop()
	p.Start()
}
