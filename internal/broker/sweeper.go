package broker

import (
	"time"

	"github.com/cat777temp/SimpleMQ/internal/logging"
)

// sweeper periodically evicts clients that have gone quiet, per §4.6: any
// client whose lastActivity is older than the inactivity threshold is
// unregistered as though it had disconnected.
type sweeper struct {
	interval  time.Duration
	threshold time.Duration
	unregFn   func(clientID string)
	log       *logging.Logger

	stop chan struct{}
	done chan struct{}
}

func newSweeper(interval, threshold time.Duration, log *logging.Logger, unregFn func(clientID string)) *sweeper {
	return &sweeper{
		interval:  interval,
		threshold: threshold,
		unregFn:   unregFn,
		log:       log,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *sweeper) start(reg *registry) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case now := <-ticker.C:
				s.sweepOnce(reg, now)
			}
		}
	}()
}

func (s *sweeper) sweepOnce(reg *registry, now time.Time) {
	for _, id := range reg.sweepInactive(now, s.threshold) {
		s.log.Infof("client %s inactive for more than %s, evicting", id, s.threshold)
		s.unregFn(id)
	}
}

func (s *sweeper) shutdown() {
	close(s.stop)
	<-s.done
}
