// Package service wires the data source, filter engine and trail renderer
// into stateless queries and stateful dashboard sessions.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/okian/vesseltrail/internal/adapters/datasource"
	eventqueue "github.com/okian/vesseltrail/internal/adapters/mq/queue"
	workerpool "github.com/okian/vesseltrail/internal/adapters/mq/worker"
	"github.com/okian/vesseltrail/internal/adapters/repository"
	"github.com/okian/vesseltrail/internal/domain/catalog"
	"github.com/okian/vesseltrail/internal/domain/colors"
	"github.com/okian/vesseltrail/internal/domain/filter"
	"github.com/okian/vesseltrail/internal/domain/model"
	"github.com/okian/vesseltrail/internal/domain/tooltip"
	"github.com/okian/vesseltrail/internal/domain/trail"
	"github.com/okian/vesseltrail/internal/domain/types"
	"github.com/okian/vesseltrail/pkg/logger"
	"github.com/okian/vesseltrail/pkg/metrics"
)

const (
	defaultQueueSize     = 1024
	defaultFetchTimeout  = 10 * time.Second
	defaultSessionTTL    = 30 * time.Minute
	metricsReportEvery   = 5 * time.Second
	sessionSweepInterval = time.Minute
)

// Service is the application shell.
type Service struct {
	mu sync.RWMutex

	source         datasource.Source
	catalog        *catalog.Catalog
	classifierOpts []colors.Option
	location       *time.Location
	engine         *filter.Engine
	renderer       *trail.Renderer

	sessions *repository.MemoryStore
	queue    *eventqueue.InMemoryQueue
	pool     *workerpool.Pool

	workerCount  int
	queueSize    int
	fetchTimeout time.Duration
	sessionTTL   time.Duration
	now          func() time.Time

	started bool
	stopCh  chan struct{}

	logger logger.Logger
}

// New creates a Service. A source must be supplied with WithSource.
func New(opts ...Option) *Service {
	s := &Service{
		catalog:      catalog.Default(),
		location:     time.UTC,
		workerCount:  runtime.NumCPU() * 2,
		queueSize:    defaultQueueSize,
		fetchTimeout: defaultFetchTimeout,
		sessionTTL:   defaultSessionTTL,
		now:          time.Now,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = filter.NewEngine(
		filter.WithLogger(s.logger.Named("filter")),
		filter.WithCatalog(s.catalog),
	)
	s.renderer = trail.NewRenderer(
		trail.WithLogger(s.logger.Named("trail")),
		trail.WithClassifier(colors.NewClassifier(s.classifierOpts...)),
		trail.WithFormatter(tooltip.NewFormatter(s.location)),
	)
	return s
}

// Start creates the session store and starts the fetch workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.source == nil {
		return fmt.Errorf("start: %w", datasource.ErrInvalidArgs)
	}

	s.logger.Info(ctx, "starting dashboard service...")

	s.sessions = repository.NewMemoryStore(ctx,
		repository.WithTTL(s.sessionTTL),
		repository.WithSweepInterval(sessionSweepInterval),
		repository.WithLogger(s.logger.Named("sessions")),
	)
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	store := s.sessions
	s.pool = workerpool.NewPool(s.workerCount, s.queue,
		workerpool.HandlerFunc(func(ctx context.Context, job model.FetchJob) error {
			return s.handleFetch(ctx, store, job)
		}),
		workerpool.WithPoolLogger(s.logger),
		workerpool.WithJobTimeout(s.fetchTimeout),
	)
	s.pool.Start(ctx)

	s.stopCh = make(chan struct{})
	go s.reportMetrics(ctx, s.pool, s.stopCh)

	s.started = true
	s.logger.Info(ctx, "dashboard service started",
		logger.String("source", s.source.Name()),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("fetchTimeout", s.fetchTimeout),
	)
	return nil
}

// Stop drains the workers and closes the session store.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	pool, sessions := s.pool, s.sessions
	close(s.stopCh)
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping dashboard service...")
	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}
	_ = sessions.Close()
	s.logger.Info(ctx, "dashboard service stopped")
}

func (s *Service) reportMetrics(ctx context.Context, pool *workerpool.Pool, stop <-chan struct{}) {
	ticker := time.NewTicker(metricsReportEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			pool.ReportMetrics()
		}
	}
}

// Catalog returns the filter choices.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Query fetches, filters and renders in one call. An upstream failure is
// returned as ErrFetchFailed rather than folded into an empty view.
func (s *Service) Query(ctx context.Context, c model.FilterCriteria, metricName string) (types.View, error) {
	metric, err := colors.ParseMetric(metricName)
	if err != nil {
		return types.View{}, err
	}
	if err := filter.Validate(c, s.catalog); err != nil {
		return types.View{}, err
	}

	points, err := s.fetch(ctx)
	if err != nil {
		s.logger.Error(ctx, "query fetch failed", logger.Error(err))
		metrics.RecordNotification(string(model.NotifyError))
		return types.View{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	result := s.applyFilter(ctx, points, c)
	render := s.render(ctx, result.Points, metric)
	status, note := outcome(&result, nil)
	metrics.RecordNotification(string(note.Kind))

	return viewOf(&repository.Session{
		Criteria:     c,
		Metric:       metric,
		Status:       status,
		Result:       result,
		Trail:        render,
		Notification: &note,
	}), nil
}

// QueryGeoJSON runs Query and encodes the trail as a feature collection.
func (s *Service) QueryGeoJSON(ctx context.Context, c model.FilterCriteria, metricName string) (*geojson.FeatureCollection, error) {
	v, err := s.Query(ctx, c, metricName)
	if err != nil {
		return nil, err
	}
	return trail.FeatureCollection(v.Trail), nil
}

// CreateSession opens a dashboard with the default criteria and queues its
// first fetch.
func (s *Service) CreateSession(ctx context.Context) (types.View, error) {
	store, q, err := s.running()
	if err != nil {
		return types.View{}, err
	}

	criteria := filter.DefaultCriteria(s.now(), s.catalog)
	sess, err := store.Create(ctx, repository.Session{
		Criteria:   criteria,
		Metric:     colors.MetricDefault,
		Theme:      model.ThemeLight,
		Status:     model.StatusLoading,
		Generation: 1,
		Result:     filter.EmptyResult(),
		Trail:      s.renderer.Build(ctx, nil, colors.MetricDefault),
	})
	if err != nil {
		return types.View{}, err
	}

	if err := q.Enqueue(ctx, model.FetchJob{SessionID: sess.ID, Generation: 1, Criteria: criteria, Enqueued: s.now()}); err != nil {
		_ = store.Delete(ctx, sess.ID)
		return types.View{}, enqueueError(err)
	}
	s.logger.Debug(ctx, "session created", logger.String("session", sess.ID))
	return viewOf(&sess), nil
}

// Session returns the session view. A pending notification is handed out
// once and then cleared.
func (s *Service) Session(ctx context.Context, id string) (types.View, error) {
	store, _, err := s.running()
	if err != nil {
		return types.View{}, err
	}
	var note *model.Notification
	sess, err := store.Update(ctx, id, func(sess *repository.Session) error {
		note = sess.Notification
		sess.Notification = nil
		return nil
	})
	if err != nil {
		return types.View{}, err
	}
	sess.Notification = note
	return viewOf(&sess), nil
}

// SubmitFilters validates c and queues a fetch under a new generation. Any
// fetch still in flight for an older generation is discarded when it lands.
// When the queue is full the session settles in error with a busy notice.
func (s *Service) SubmitFilters(ctx context.Context, id string, c model.FilterCriteria) (uint64, error) {
	store, q, err := s.running()
	if err != nil {
		return 0, err
	}
	if err := filter.Validate(c, s.catalog); err != nil {
		return 0, err
	}

	sess, err := store.Update(ctx, id, func(sess *repository.Session) error {
		sess.Generation++
		sess.Criteria = c
		sess.Status = model.StatusLoading
		return nil
	})
	if err != nil {
		return 0, err
	}

	gen := sess.Generation
	if err := q.Enqueue(ctx, model.FetchJob{SessionID: id, Generation: gen, Criteria: c, Enqueued: s.now()}); err != nil {
		// Keep the bumped generation. Older jobs in flight are already stale against it.
		_, _ = store.Update(ctx, id, func(sess *repository.Session) error {
			if sess.Generation != gen {
				return errStale
			}
			sess.Status = model.StatusError
			sess.Notification = &model.Notification{Kind: model.NotifyError, Message: msgBusy}
			return nil
		})
		metrics.RecordNotification(string(model.NotifyError))
		return 0, enqueueError(err)
	}
	return gen, nil
}

// SetMetric changes the coloring metric and re-renders the current result.
// Filtering is not re-run.
func (s *Service) SetMetric(ctx context.Context, id, metricName string) (types.View, error) {
	store, _, err := s.running()
	if err != nil {
		return types.View{}, err
	}
	metric, err := colors.ParseMetric(metricName)
	if err != nil {
		return types.View{}, err
	}
	var sess repository.Session
	for attempt := 1; ; attempt++ {
		cur, err := store.Get(ctx, id)
		if err != nil {
			return types.View{}, err
		}
		if cur.Metric == metric {
			sess = cur
			break
		}
		render := s.render(ctx, cur.Result.Points, metric)
		sess, err = store.Update(ctx, id, func(sess *repository.Session) error {
			if sess.Revision != cur.Revision {
				if attempt < maxRenderAttempts {
					return errRenderRaced
				}
				render = s.render(ctx, sess.Result.Points, metric)
			}
			sess.Metric = metric
			sess.Trail = render
			sess.Revision++
			return nil
		})
		if errors.Is(err, errRenderRaced) {
			continue
		}
		if err != nil {
			return types.View{}, err
		}
		break
	}
	sess.Notification = nil
	return viewOf(&sess), nil
}

// SetTheme switches the session between light and dark.
func (s *Service) SetTheme(ctx context.Context, id string, theme model.Theme) (types.View, error) {
	store, _, err := s.running()
	if err != nil {
		return types.View{}, err
	}
	if !theme.Valid() {
		return types.View{}, fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}
	sess, err := store.Update(ctx, id, func(sess *repository.Session) error {
		sess.Theme = theme
		return nil
	})
	if err != nil {
		return types.View{}, err
	}
	sess.Notification = nil
	return viewOf(&sess), nil
}

// SessionGeoJSON encodes the session's current trail.
func (s *Service) SessionGeoJSON(ctx context.Context, id string) (*geojson.FeatureCollection, error) {
	store, _, err := s.running()
	if err != nil {
		return nil, err
	}
	sess, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return trail.FeatureCollection(sess.Trail), nil
}

// DeleteSession drops the session. In-flight fetches for it are discarded.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	store, _, err := s.running()
	if err != nil {
		return err
	}
	return store.Delete(ctx, id)
}

// handleFetch resolves one queued fetch and applies it if the session still
// expects that generation.
func (s *Service) handleFetch(ctx context.Context, store repository.Store, job model.FetchJob) error { //nolint:gocritic // hugeParam: jobs travel by value
	sess, err := store.Get(ctx, job.SessionID)
	if err != nil {
		s.logger.Debug(ctx, "dropping fetch for closed session", logger.String("session", job.SessionID))
		return nil
	}
	if sess.Generation != job.Generation {
		s.discardStale(ctx, job, sess.Generation)
		return nil
	}

	points, fetchErr := s.fetch(ctx)
	result := filter.EmptyResult()
	if fetchErr != nil {
		s.logger.Error(ctx, "session fetch failed",
			logger.String("session", job.SessionID),
			logger.Error(fetchErr))
	} else {
		result = s.applyFilter(ctx, points, job.Criteria)
	}
	status, note := outcome(&result, fetchErr)
	metric := sess.Metric
	for attempt := 1; ; attempt++ {
		render := s.render(ctx, result.Points, metric)
		_, err = store.Update(ctx, job.SessionID, func(sess *repository.Session) error {
			if sess.Generation != job.Generation {
				return errStale
			}
			if sess.Metric != metric {
				if attempt < maxRenderAttempts {
					metric = sess.Metric
					return errRenderRaced
				}
				render = s.render(ctx, result.Points, sess.Metric)
			}
			sess.Result = result
			sess.Trail = render
			sess.Revision++
			sess.Status = status
			sess.Notification = &note
			return nil
		})
		if !errors.Is(err, errRenderRaced) {
			break
		}
	}
	switch {
	case errors.Is(err, errStale):
		current, _ := store.Get(ctx, job.SessionID)
		s.discardStale(ctx, job, current.Generation)
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return err
	}

	metrics.RecordNotification(string(note.Kind))
	s.logger.Debug(ctx, "session updated",
		logger.String("session", job.SessionID),
		logger.Int64("generation", int64(job.Generation)),
		logger.String("status", string(status)),
		logger.Int("points", len(result.Points)))
	return nil
}

func (s *Service) discardStale(ctx context.Context, job model.FetchJob, current uint64) { //nolint:gocritic // hugeParam: jobs travel by value
	metrics.RecordStaleResponse()
	s.logger.Debug(ctx, "discarding stale fetch",
		logger.String("session", job.SessionID),
		logger.Int64("generation", int64(job.Generation)),
		logger.Int64("current", int64(current)))
}

func (s *Service) fetch(ctx context.Context) ([]model.DataPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	return s.source.Load(ctx)
}

func (s *Service) applyFilter(ctx context.Context, points []model.DataPoint, c model.FilterCriteria) model.FilterResult {
	result := s.engine.Apply(ctx, points, c)
	metrics.RecordFilterRun(len(result.Points))
	return result
}

func (s *Service) render(ctx context.Context, points []model.DataPoint, m colors.Metric) trail.Render {
	start := time.Now()
	r := s.renderer.Build(ctx, points, m)
	metrics.RecordTrailRender(len(r.Segments), r.Skipped, float64(time.Since(start).Microseconds())/1000.0)
	return r
}

func (s *Service) running() (*repository.MemoryStore, *eventqueue.InMemoryQueue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.sessions, s.queue, nil
}

func enqueueError(err error) error {
	if errors.Is(err, eventqueue.ErrFull) {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return err
}

// GetStats reports service state for the /stats endpoint.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"source":       "",
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"fetchTimeout": s.fetchTimeout.String(),
		"sessionTTL":   s.sessionTTL.String(),
	}
	if s.source != nil {
		stats["source"] = s.source.Name()
	}
	if s.started {
		ctx := context.Background()
		queueLen := s.queue.Len()
		sessions := s.sessions.Count(ctx)

		stats["queueLength"] = queueLen
		stats["activeSessions"] = sessions
		stats["activeWorkers"] = s.pool.Active()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateSessionsActive(sessions)
		s.pool.ReportMetrics()
	}
	return stats
}
