package ingest

import (
	"context"
	"time"

	shared "github.com/fitglue/polar-ingest/pkg"
)

// Pacer spaces out uploads so the warehouse loads they trigger stay under
// the table metadata update rate.
type Pacer struct {
	Delay time.Duration
	Sleep Sleeper
}

func NewPacer() *Pacer {
	return &Pacer{Delay: shared.WarehousePacing, Sleep: Sleep}
}

// After waits if the item at index idx of n is not the last one.
func (p *Pacer) After(ctx context.Context, idx, n int) error {
	if idx >= n-1 {
		return nil
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	return sleep(ctx, p.Delay)
}
