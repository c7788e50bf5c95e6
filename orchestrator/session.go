package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kerastion/trioflow/analysis"
	"github.com/Kerastion/trioflow/evolution"
	"github.com/Kerastion/trioflow/internal/metrics"
	"github.com/Kerastion/trioflow/llm"
	"github.com/Kerastion/trioflow/policy"
	"github.com/Kerastion/trioflow/store"
	"github.com/Kerastion/trioflow/types"
)

// Session owns one conversation: its history, analyzer, speaker policy,
// variant arena and provider. Not safe for concurrent use.
type Session struct {
	id       string
	cfg      Config
	provider llm.Provider
	engine   *analysis.Engine
	pol      policy.Policy
	arena    *evolution.Arena

	history   types.History
	variants  []string // variant id per history index, "" for error utterances
	snapshot  *analysis.Snapshot
	observers []Observer

	persist   store.Store
	tokens    *llm.TokenEstimator
	collector *metrics.Collector
	rng       *rand.Rand
	logger    *zap.Logger
	closed    bool
}

// Option configures a Session at construction.
type Option func(*Session)

// WithStore attaches a persistence backend for autosave and the experiment
// record trail.
func WithStore(s store.Store) Option {
	return func(sess *Session) { sess.persist = s }
}

// WithMetrics attaches a Prometheus collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(sess *Session) { sess.collector = c }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(sess *Session) { sess.logger = logger }
}

// WithRand pins the random source; tests use this to make the exploration
// draws and the reactive coin flip deterministic.
func WithRand(rng *rand.Rand) Option {
	return func(sess *Session) { sess.rng = rng }
}

// WithObserver registers a step observer.
func WithObserver(o Observer) Option {
	return func(sess *Session) { sess.observers = append(sess.observers, o) }
}

// WithID fixes the session id instead of generating one.
func WithID(id string) Option {
	return func(sess *Session) { sess.id = id }
}

// NewSession builds a session and seeds every role's baseline variant.
func NewSession(cfg Config, provider llm.Provider, opts ...Option) (*Session, error) {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultConfig().MaxTurns
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultConfig().HistoryWindow
	}

	sess := &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		provider: provider,
	}
	for _, opt := range opts {
		opt(sess)
	}
	if sess.logger == nil {
		sess.logger = zap.NewNop()
	}
	sess.logger = sess.logger.With(
		zap.String("component", "session"),
		zap.String("session", sess.id))
	if sess.rng == nil {
		sess.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	sess.tokens = llm.NewTokenEstimator(cfg.Model)
	sess.engine = analysis.NewEngine(sess.logger)
	sess.pol = policy.New(cfg.Strategy, sess.rng)
	sess.arena = evolution.NewArena(cfg.Evolution, sess.rng, sess.logger)

	if sess.collector != nil {
		sess.arena.OnBreed(func(v *evolution.PromptVariant) {
			sess.collector.RecordVariantBred(v.Role, string(v.MutationKind))
		})
		sess.arena.OnPrune(func(v *evolution.PromptVariant) {
			sess.collector.RecordVariantPruned(v.Role)
		})
	}

	baselines := defaultBaselines()
	for role, seed := range cfg.Baselines {
		baselines[role] = seed
	}
	for _, role := range types.AllRoles() {
		if _, err := sess.arena.RegisterBaseline(role, baselines[role]); err != nil {
			return nil, fmt.Errorf("failed to seed baseline for %s: %w", role, err)
		}
	}

	return sess, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// History returns a copy of the conversation so far.
func (s *Session) History() types.History {
	out := make(types.History, len(s.history))
	copy(out, s.history)
	return out
}

// Snapshot returns the latest analyzer output, nil before the first step.
func (s *Session) Snapshot() *analysis.Snapshot { return s.snapshot }

// Arena exposes the variant arena for stats and state export.
func (s *Session) Arena() *evolution.Arena { return s.arena }

// SetStrategy swaps the speaker policy mid-conversation. History and
// populations are untouched; only the new policy's cursor starts fresh.
func (s *Session) SetStrategy(strategy policy.Strategy) {
	s.pol = policy.New(strategy, s.rng)
	s.logger.Info("speaker strategy switched", zap.String("strategy", string(strategy)))
}

// Close marks the session finished and persists a final snapshot.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.persist == nil {
		return nil
	}
	return s.saveSnapshot(ctx)
}

// Step advances the conversation by one utterance. An upstream failure is
// recorded as an error utterance for the speaking role, no experiment is
// recorded, and the step reports success so the loop can continue.
func (s *Session) Step(ctx context.Context) (*StepView, error) {
	if s.closed {
		return nil, types.NewError(types.ErrSessionClosed, "session is closed")
	}

	preSnap := s.snapshot
	if preSnap == nil {
		preSnap = s.engine.Analyze(s.history, s.cfg.Topic, len(s.history), s.cfg.MaxTurns)
	}

	role := s.pol.Next(preSnap, s.history)
	if s.collector != nil {
		s.collector.RecordStep(role, string(s.pol.Name()))
		if role == types.RoleModerator && s.pol.Name() == policy.StrategyReactive &&
			policy.ShouldModeratorIntervene(preSnap) {
			s.collector.RecordIntervention()
		}
	}

	variant, err := s.arena.SelectPrompt(role)
	if err != nil {
		return nil, fmt.Errorf("failed to select prompt for %s: %w", role, err)
	}

	msgs := buildMessages(variant, role, s.cfg.Topic, s.history, s.cfg.HistoryWindow)
	req := &llm.ChatRequest{
		Model:       s.cfg.Model,
		Messages:    msgs,
		MaxTokens:   s.sizeReply(msgs),
		Temperature: float32(variant.Temperature),
		Stream:      s.cfg.Stream,
	}

	start := time.Now()
	text, callErr := s.complete(ctx, req)
	elapsed := time.Since(start)

	if s.collector != nil {
		status := "ok"
		if callErr != nil {
			status = "error"
		}
		s.collector.RecordLLMRequest(s.provider.Name(), s.cfg.Model, status, elapsed)
	}

	if callErr != nil {
		// Cancellation aborts the step; the caller decides what dies with it.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("upstream call failed",
			zap.String("role", string(role)),
			zap.Error(callErr))
		s.history = append(s.history, types.Utterance{
			Role:      role,
			Text:      fmt.Sprintf("(no reply: %v)", callErr),
			Timestamp: time.Now(),
			Provider:  s.provider.Name(),
			IsError:   true,
		})
		s.variants = append(s.variants, "")
		view := s.finishStep("")
		for _, o := range s.observers {
			o.OnStep(*view)
		}
		return view, nil
	}

	s.history = append(s.history, types.Utterance{
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
		Model:     s.cfg.Model,
		Provider:  s.provider.Name(),
	})
	s.variants = append(s.variants, variant.ID)

	view := s.finishStep(variant.ID)

	rel := view.Snapshot.Speakers[role].TopicRelevance
	outcome := evolution.ExperimentOutcome{
		VariantID:      variant.ID,
		ConversationID: s.id,
		Timestamp:      time.Now(),
		QualityMetrics: evolution.QualityMetrics{
			Coherence:      view.Snapshot.Coherence,
			Engagement:     view.Snapshot.Engagement,
			Humor:          view.Snapshot.Humor,
			TopicRelevance: rel,
			Overall:        evolution.OverallQuality(view.Snapshot.Coherence, view.Snapshot.Engagement, rel),
		},
		ResponseMetrics: evolution.ResponseMetrics{
			AvgLength: float64(len(text)),
			AvgTime:   elapsed.Seconds(),
		},
	}
	s.arena.RecordExperiment(outcome)
	if s.collector != nil {
		s.collector.RecordExperiment(role)
		s.collector.SetPopulationSize(role, s.arena.Population(role).Size())
	}
	s.appendExperimentRecord(ctx, role, outcome)
	s.autosave(ctx)

	for _, o := range s.observers {
		o.OnStep(*view)
	}
	return view, nil
}

// minReplyTokens is the floor for a completion when the prompt has already
// eaten most of the context window.
const minReplyTokens = 16

// sizeReply shrinks the configured completion cap when the estimated prompt
// leaves less room than that inside the model's context window.
func (s *Session) sizeReply(msgs []llm.Message) int {
	if s.cfg.ContextWindow <= 0 {
		return s.cfg.MaxTokens
	}
	prompt := s.tokens.EstimateMessages(msgs)
	room := s.cfg.ContextWindow - prompt
	if room < minReplyTokens {
		room = minReplyTokens
	}
	if s.cfg.MaxTokens > 0 {
		if s.cfg.MaxTokens <= room {
			return s.cfg.MaxTokens
		}
		s.logger.Debug("completion cap reduced to fit the context window",
			zap.Int("prompt_tokens", prompt),
			zap.Int("max_tokens", room))
	}
	return room
}

// finishStep re-analyzes the history and assembles the step view.
func (s *Session) finishStep(variantID string) *StepView {
	s.snapshot = s.engine.Analyze(s.history, s.cfg.Topic, len(s.history), s.cfg.MaxTurns)
	return &StepView{
		SessionID: s.id,
		Turn:      len(s.history) - 1,
		Utterance: s.history[len(s.history)-1],
		VariantID: variantID,
		Snapshot:  *s.snapshot,
		Stats:     s.arena.AllStats(),
	}
}

// complete performs the provider call, streaming or single-shot.
func (s *Session) complete(ctx context.Context, req *llm.ChatRequest) (string, error) {
	if s.cfg.Stream {
		ch, err := s.provider.Stream(ctx, req)
		if err != nil {
			return "", err
		}
		text, _, err := llm.CollectStream(ctx, ch)
		return text, err
	}
	resp, err := s.provider.Completion(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Run advances the conversation n steps. Provider failures do not stop the
// loop; only cancellation or a configuration error does.
func (s *Session) Run(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if _, err := s.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RateUtterance feeds a user rating (1..5) back to the variant that
// produced the utterance at turn.
func (s *Session) RateUtterance(turn, rating int, comment string) error {
	if turn < 0 || turn >= len(s.variants) {
		return fmt.Errorf("no utterance at turn %d", turn)
	}
	variantID := s.variants[turn]
	if variantID == "" {
		return fmt.Errorf("turn %d has no rateable utterance", turn)
	}
	s.arena.RecordFeedback(variantID, evolution.UserFeedback{
		Rating:  rating,
		Comment: comment,
	})
	return nil
}

// RestoreState replaces the arena populations from a persisted snapshot.
func (s *Session) RestoreState(blob []byte) error {
	return s.arena.ImportState(blob)
}

func (s *Session) saveSnapshot(ctx context.Context) error {
	blob, err := s.arena.ExportState()
	if err != nil {
		return fmt.Errorf("failed to export population state: %w", err)
	}
	if err := s.persist.SaveSnapshot(ctx, s.id, blob); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *Session) autosave(ctx context.Context) {
	if s.persist == nil || s.cfg.AutosaveEvery <= 0 {
		return
	}
	if len(s.history)%s.cfg.AutosaveEvery != 0 {
		return
	}
	if err := s.saveSnapshot(ctx); err != nil {
		s.logger.Warn("autosave failed", zap.Error(err))
	}
}

func (s *Session) appendExperimentRecord(ctx context.Context, role types.Role, outcome evolution.ExperimentOutcome) {
	if s.persist == nil {
		return
	}
	payload, err := json.Marshal(outcome)
	if err != nil {
		s.logger.Warn("failed to marshal experiment record", zap.Error(err))
		return
	}
	rec := store.ExperimentRecord{
		SessionID: s.id,
		VariantID: outcome.VariantID,
		Role:      string(role),
		Overall:   outcome.QualityMetrics.Overall,
		Payload:   payload,
		CreatedAt: outcome.Timestamp,
	}
	if err := s.persist.AppendExperiment(ctx, rec); err != nil {
		s.logger.Warn("failed to append experiment record", zap.Error(err))
	}
}
