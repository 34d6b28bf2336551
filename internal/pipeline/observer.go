package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/himanishpuri/LiveSetlist/pkg/logger"
	"github.com/himanishpuri/LiveSetlist/pkg/models"
)

// Observer receives confirmed detections. OnDetection is called from an
// analysis worker and should return quickly.
type Observer interface {
	OnDetection(d models.ConfirmedDetection)
}

type ObserverFunc func(d models.ConfirmedDetection)

func (f ObserverFunc) OnDetection(d models.ConfirmedDetection) { f(d) }

// SongAdder is the part of the session store the pipeline feeds.
type SongAdder interface {
	AddSong(c *models.Candidate, targetArtist string) models.AddResult
}

const DefaultDeliveryBuffer = 16

// SessionObserver queues detections on a bounded channel drained by a single
// goroutine, so a slow store never stalls analysis. When the queue is full
// the oldest detection is dropped.
type SessionObserver struct {
	store    SongAdder
	log      logger.Leveled
	onResult func(models.ConfirmedDetection, models.AddResult)

	mu      sync.Mutex
	ch      chan models.ConfirmedDetection
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

// NewSessionObserver starts the drain goroutine. onResult, if set, is called
// after each AddSong from the drain goroutine.
func NewSessionObserver(store SongAdder, buffer int, log logger.Leveled, onResult func(models.ConfirmedDetection, models.AddResult)) *SessionObserver {
	if buffer <= 0 {
		buffer = DefaultDeliveryBuffer
	}
	if log == nil {
		log = logger.GetLogger()
	}
	o := &SessionObserver{
		store:    store,
		log:      log,
		onResult: onResult,
		ch:       make(chan models.ConfirmedDetection, buffer),
		done:     make(chan struct{}),
	}
	go o.drain()
	return o
}

func (o *SessionObserver) OnDetection(d models.ConfirmedDetection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		o.log.Warnf("detection %s (%s) after observer close, dropped", d.ID, d.Candidate.Title)
		return
	}
	select {
	case o.ch <- d:
		return
	default:
	}
	select {
	case old := <-o.ch:
		o.dropped.Add(1)
		o.log.Warnf("delivery queue full, dropping detection %s (%s)", old.ID, old.Candidate.Title)
	default:
	}
	select {
	case o.ch <- d:
	default:
		o.dropped.Add(1)
		o.log.Warnf("delivery queue full, dropping detection %s (%s)", d.ID, d.Candidate.Title)
	}
}

func (o *SessionObserver) drain() {
	defer close(o.done)
	for d := range o.ch {
		c := d.Candidate
		res := o.store.AddSong(&c, d.TargetArtist)
		switch res.Status {
		case models.Added, models.Updated:
			o.log.Infof("%s #%d %s - %s", res.Status, res.Entry.ID, res.Entry.Title, res.Entry.Artist)
		default:
			o.log.Debugf("detection %s rejected: %s", d.Candidate.Title, res.Reason)
		}
		if o.onResult != nil {
			o.onResult(d, res)
		}
	}
}

// Dropped reports how many detections overflowed the queue.
func (o *SessionObserver) Dropped() int64 { return o.dropped.Load() }

// Close stops accepting detections and waits until queued ones are stored.
func (o *SessionObserver) Close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.ch)
	}
	o.mu.Unlock()
	<-o.done
}
