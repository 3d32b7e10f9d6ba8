package jobs

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/lectern/admission"
	"github.com/poiesic/lectern/blob"
	"github.com/poiesic/lectern/progress"
	"github.com/poiesic/lectern/queue"
	"github.com/poiesic/lectern/storage"
	"github.com/poiesic/lectern/summary"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxBytes is the largest accepted upload.
	DefaultMaxBytes = 50 << 20

	// DefaultRateCount submissions are allowed per owner every DefaultRatePeriod.
	DefaultRateCount  = 10
	DefaultRatePeriod = time.Minute

	// DefaultBucket is used when no bucket is configured.
	DefaultBucket = "lectern"

	// MaxPageSize bounds List.
	MaxPageSize = 100
)

// Service is the producer and read side of the pipeline.
type Service struct {
	store      storage.Store
	tracker    *progress.Tracker
	queue      queue.Queue
	blobs      blob.Store
	gate       *admission.Gate
	summarizer *summary.Summarizer

	bucket      string
	maxBytes    int
	knownOwners bool
	staleAfter  time.Duration

	rateLimit rate.Limit
	rateBurst int
	limitMu   sync.Mutex
	limiters  map[string]*rate.Limiter

	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithGate enables backpressure on Submit.
func WithGate(gate *admission.Gate) Option {
	return func(s *Service) error {
		s.gate = gate
		return nil
	}
}

// WithSummarizer enables Summarize.
func WithSummarizer(summarizer *summary.Summarizer) Option {
	return func(s *Service) error {
		s.summarizer = summarizer
		return nil
	}
}

// WithBucket sets the blob bucket uploads are written to.
func WithBucket(bucket string) Option {
	return func(s *Service) error {
		if bucket == "" {
			return fmt.Errorf("bucket cannot be empty")
		}
		s.bucket = bucket
		return nil
	}
}

// WithMaxBytes sets the upload size limit.
func WithMaxBytes(n int) Option {
	return func(s *Service) error {
		if n <= 0 {
			return fmt.Errorf("max bytes must be positive, got %d", n)
		}
		s.maxBytes = n
		return nil
	}
}

// WithRate allows count submissions per owner every period.
func WithRate(count int, period time.Duration) Option {
	return func(s *Service) error {
		if count <= 0 || period <= 0 {
			return fmt.Errorf("invalid rate %d per %s", count, period)
		}
		s.rateLimit = rate.Every(period / time.Duration(count))
		s.rateBurst = count
		return nil
	}
}

// WithStaleAfter sets how old a PENDING or PROCESSING cache entry may get
// before Status verifies it against the durable store.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Service) error {
		if d <= 0 {
			return fmt.Errorf("stale after must be positive, got %s", d)
		}
		s.staleAfter = d
		return nil
	}
}

// WithKnownOwners makes Submit reject owners that are not registered users.
func WithKnownOwners() Option {
	return func(s *Service) error {
		s.knownOwners = true
		return nil
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		s.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates a Service.
func NewService(store storage.Store, tracker *progress.Tracker, q queue.Queue, blobs blob.Store, opts ...Option) (*Service, error) {
	switch {
	case store == nil:
		return nil, ErrStoreRequired
	case tracker == nil:
		return nil, ErrTrackerRequired
	case q == nil:
		return nil, ErrQueueRequired
	case blobs == nil:
		return nil, ErrBlobStoreRequired
	}

	s := &Service{
		store:      store,
		tracker:    tracker,
		queue:      q,
		blobs:      blobs,
		bucket:     DefaultBucket,
		maxBytes:   DefaultMaxBytes,
		staleAfter: progress.DefaultStaleAfter,
		rateLimit:  rate.Every(DefaultRatePeriod / DefaultRateCount),
		rateBurst:  DefaultRateCount,
		limiters:   make(map[string]*rate.Limiter),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "jobs")
	return s, nil
}

// allow consumes one submission token for owner.
func (s *Service) allow(owner string) bool {
	s.limitMu.Lock()
	defer s.limitMu.Unlock()
	l, ok := s.limiters[owner]
	if !ok {
		l = rate.NewLimiter(s.rateLimit, s.rateBurst)
		s.limiters[owner] = l
	}
	return l.AllowN(s.now(), 1)
}
