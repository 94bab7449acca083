// Package session runs the full scoring pipeline over recorded sessions:
// windowing, per-epoch activity, linear scoring, thresholding and rescoring,
// plus the independent ESS and orientation passes.
package session

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/sleepwake/pkg/epoch"
	"github.com/codeGROOVE-dev/sleepwake/pkg/features"
	"github.com/codeGROOVE-dev/sleepwake/pkg/label"
	"github.com/codeGROOVE-dev/sleepwake/pkg/params"
	"github.com/codeGROOVE-dev/sleepwake/pkg/rescore"
	"github.com/codeGROOVE-dev/sleepwake/pkg/resultcache"
	"github.com/codeGROOVE-dev/sleepwake/pkg/sleep"
)

// Scorer turns sessions into sleep/wake timelines.
type Scorer struct {
	logger      *slog.Logger
	cache       *resultcache.Cache
	pipeline    rescore.Pipeline
	params      params.Params
	paramsKey   []byte
	method      features.Method
	metric      features.Metric
	workers     int
	weightedESS bool
}

// NewWithLogger creates a Scorer. Without WithCache or WithNoCache, results are
// memoized in a private in-memory cache.
func NewWithLogger(logger *slog.Logger, opts ...Option) (*Scorer, error) {
	optHolder := &OptionHolder{}
	for _, opt := range opts {
		opt(optHolder)
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := params.Default()
	if optHolder.params != nil {
		p = *optHolder.params
	}
	if optHolder.method != nil {
		p.Scoring.Method = optHolder.method.String()
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	method, _ := p.Method()     //nolint:errcheck // validated above
	metric, _ := p.Metric()     //nolint:errcheck // validated above
	pipeline, _ := p.Pipeline() //nolint:errcheck // validated above

	paramsKey, err := p.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encoding parameters: %w", err)
	}

	var cache *resultcache.Cache
	switch {
	case optHolder.noCache:
		logger.Debug("result caching disabled")
	case optHolder.cache != nil:
		cache = optHolder.cache
	default:
		cache = resultcache.New(12*time.Hour, logger)
	}

	workers := optHolder.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Scorer{
		logger:      logger,
		cache:       cache,
		pipeline:    pipeline,
		params:      p,
		paramsKey:   paramsKey,
		method:      method,
		metric:      metric,
		workers:     workers,
		weightedESS: optHolder.weightedESS,
	}, nil
}

// Params returns the parameter set in use.
func (s *Scorer) Params() params.Params {
	return s.params
}

// Score runs the pipeline over one session.
func (s *Scorer) Score(ctx context.Context, sess Session) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var key string
	if s.cache != nil {
		k, err := s.cacheKey(sess)
		if err != nil {
			s.logger.Warn("could not derive cache key", "session", sess.ID, "error", err)
		} else {
			key = k
			if res, ok := s.cached(key); ok {
				res.ID = sess.ID
				s.logger.Debug("session served from cache", "session", sess.ID)
				return res, nil
			}
		}
	}

	res, err := s.score(sess)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sess.ID, err)
	}

	s.logger.Info("scored session",
		"session", sess.ID,
		"method", s.method.String(),
		"epochs", len(res.Labels),
		"sleep_epochs", res.Labels.Count(label.Sleep),
		"undefined", len(res.Undefined),
		"segments", len(res.Segments),
		"orientation_changes", len(res.Orientation))

	if key != "" {
		s.store(key, res)
	}
	return res, nil
}

func (s *Scorer) score(sess Session) (*Result, error) {
	sig := sess.Signal
	if sig.Rate == 0 {
		sig.Rate = s.params.Epoch.SamplingRate
	}

	var ws []epoch.Window
	var err error
	if sess.EpochEnds != nil {
		if err = sig.Validate(); err == nil {
			ws, err = epoch.AtEnds(len(sig.Samples), sess.EpochEnds, sig.Rate, s.params.Epoch.WindowDuration)
		}
	} else {
		ws, err = sig.Windows(s.params.Epoch.WindowDuration, s.params.Epoch.WindowInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("windowing signal: %w", err)
	}

	res := &Result{ID: sess.ID, Windows: ws}
	res.Activity = features.Activity(sig.Segments(ws), s.metric)
	if res.Scores, err = features.ScoreSeries(s.method, res.Activity); err != nil {
		return nil, fmt.Errorf("scoring epochs: %w", err)
	}
	if res.Raw, res.Undefined, err = features.LabelSeries(s.method, res.Scores, s.params.Scoring.Cutoff); err != nil {
		return nil, fmt.Errorf("labelling epochs: %w", err)
	}
	res.Labels = s.pipeline.Apply(res.Raw)
	res.Runs = res.Labels.Runs()

	if len(sess.Vertical) > 0 {
		segment := sleep.Accel
		if s.weightedESS {
			segment = sleep.AccelWeighted
		}
		if res.Segments, err = segment(sess.Vertical, s.params.ESS); err != nil {
			return nil, fmt.Errorf("segmenting vertical axis: %w", err)
		}
	}

	if len(sess.Axis) > 0 {
		o, err := s.params.Orientation.Detect(sess.Axis, sess.AxisTimes)
		if err != nil {
			return nil, fmt.Errorf("detecting orientation changes: %w", err)
		}
		res.Orientation = o.Changes
	}
	return res, nil
}

// ScoreAll scores independent sessions concurrently, at most WithWorkers at a
// time. Sessions without an ID are given one. Results are returned in input
// order; the first failure cancels the rest.
func (s *Scorer) ScoreAll(ctx context.Context, sessions []Session) ([]*Result, error) {
	results := make([]*Result, len(sessions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := range sessions {
		sess := sessions[i]
		if sess.ID == "" {
			sess.ID = uuid.New().String()
		}
		g.Go(func() error {
			res, err := s.Score(gctx, sess)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("batch scoring failed", "sessions", len(sessions), "error", err)
		return nil, err
	}
	s.logger.Info("batch scored", "sessions", len(sessions), "workers", s.workers)
	return results, nil
}

// cacheKey hashes the parameters and the session content, ignoring the ID.
func (s *Scorer) cacheKey(sess Session) (string, error) {
	sess.ID = ""
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(sess); err != nil {
		return "", err
	}
	weighted := []byte{0}
	if s.weightedESS {
		weighted[0] = 1
	}
	return resultcache.Key(s.paramsKey, weighted, buf.Bytes()), nil
}

func (s *Scorer) cached(key string) (*Result, bool) {
	data, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	var res Result
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&res); err != nil {
		s.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}
	res.Cached = true
	return &res, true
}

func (s *Scorer) store(key string, res *Result) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(res); err != nil {
		s.logger.Warn("could not encode result for cache", "session", res.ID, "error", err)
		return
	}
	s.cache.Set(key, buf.Bytes())
}
