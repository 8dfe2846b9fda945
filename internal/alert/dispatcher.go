package alert

import (
	"fmt"
	"os"
	"sync"
)

// Dispatcher fans out alert events to matching webhook configurations.
type Dispatcher struct {
	configs []AlertConfig
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty (callers should nil-check).
func NewDispatcher(configs []AlertConfig) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	return &Dispatcher{configs: configs}
}

// Dispatch sends the event to all webhooks whose Events list matches.
// Matching is based on event.Decision or event.Type (denial kind).
// Fires goroutines and does not block the caller.
func (d *Dispatcher) Dispatch(event AlertEvent) {
	for _, cfg := range d.configs {
		if matches(cfg.Events, event) {
			d.wg.Add(1)
			go func(cfg AlertConfig) {
				defer d.wg.Done()
				if err := Send(cfg, event); err != nil {
					fmt.Fprintf(os.Stderr, "corridorwatch: alert %s: %v\n", cfg.URL, err)
				}
			}(cfg)
		}
	}
}

// Wait blocks until in-flight sends finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func matches(events []string, event AlertEvent) bool {
	for _, e := range events {
		if e == event.Decision {
			return true
		}
		if event.Type != "" && e == event.Type {
			return true
		}
	}
	return false
}
