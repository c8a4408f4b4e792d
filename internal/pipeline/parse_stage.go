package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/referral-intake/internal/entity"
	"github.com/joseph-ayodele/referral-intake/internal/llm"
)

// ParseStage picks a field strategy and falls back to pattern matching on any remote failure.
type ParseStage struct {
	Logger   *slog.Logger
	Remote   llm.FieldStrategy // may be nil
	Fallback llm.FieldStrategy
	Observer Observer
}

func NewParseStage(logger *slog.Logger, remote, fallback llm.FieldStrategy, obs Observer) *ParseStage {
	if logger == nil {
		logger = slog.Default()
	}
	if fallback == nil {
		fallback = llm.NewPatternExtractor(logger)
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &ParseStage{Logger: logger, Remote: remote, Fallback: fallback, Observer: obs}
}

// RemoteAvailable reports whether a remote strategy is wired and has a credential.
func (p *ParseStage) RemoteAvailable() bool {
	return p.Remote != nil && p.Remote.Available()
}

// Run always returns a complete FieldSet. The remote strategy is tried only when
// useRemote is set and it is available; any error from it selects the fallback.
func (p *ParseStage) Run(ctx context.Context, req llm.ExtractRequest, useRemote bool) entity.FieldSet {
	start := time.Now()

	if useRemote && p.RemoteAvailable() {
		fs, _, err := p.Remote.ExtractFields(ctx, req)
		if err == nil {
			fs.Normalize()
			fs.AIUsed = true
			p.Observer.ObserveFields(p.Remote.Name(), OutcomeOK, fs.FoundCount())
			p.Logger.Info("pipeline.parse.ok",
				"strategy", p.Remote.Name(),
				"found", fs.FoundCount(),
				"confidence", fs.Confidence,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return fs
		}
		p.Observer.ObserveFields(p.Remote.Name(), OutcomeFallback, 0)
		p.Logger.Warn("pipeline.parse.fallback",
			"strategy", p.Remote.Name(),
			"fallback", p.Fallback.Name(),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}

	fs, _, err := p.Fallback.ExtractFields(ctx, req)
	if err != nil {
		// The pattern strategy does not fail; a custom fallback might.
		p.Logger.Error("pipeline.parse.fallback_failed", "strategy", p.Fallback.Name(), "error", err)
		fs = llm.ExtractWithPatterns(req.Text)
	}
	fs.Normalize()
	fs.AIUsed = false
	p.Observer.ObserveFields(p.Fallback.Name(), OutcomeOK, fs.FoundCount())
	p.Logger.Info("pipeline.parse.ok",
		"strategy", p.Fallback.Name(),
		"found", fs.FoundCount(),
		"confidence", fs.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return fs
}
