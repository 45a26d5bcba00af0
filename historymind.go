// Package historymind answers questions about Vietnamese history over a
// fixed corpus of dated events.
//
// A question goes through rewriting, intent classification, entity
// resolution and constraint extraction, is checked for conflicts against
// the known lifetimes of people and dynasties, and is answered from
// retrieved, reranked records with fixed templates. Factual answers are
// verified before they are returned.
package historymind

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/brunobiangulo/historymind/conflict"
	"github.com/brunobiangulo/historymind/constraint"
	"github.com/brunobiangulo/historymind/entity"
	"github.com/brunobiangulo/historymind/intent"
	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/llm"
	"github.com/brunobiangulo/historymind/nlu"
	"github.com/brunobiangulo/historymind/parser"
	"github.com/brunobiangulo/historymind/rerank"
	"github.com/brunobiangulo/historymind/retrieval"
	"github.com/brunobiangulo/historymind/store"
	"github.com/brunobiangulo/historymind/synth"
	"github.com/brunobiangulo/historymind/verify"
)

// Engine is the main entry point of the query engine.
type Engine interface {
	// Query answers a question. It never fails: errors and panics become
	// an apology answer with Outcome internal_error.
	Query(ctx context.Context, question string, opts ...QueryOption) *Answer

	// Stats returns corpus and store statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Snapshot returns the immutable corpus snapshot.
	Snapshot() *kb.Snapshot

	// Close releases the worker pool, the embedding cache and the store.
	Close() error
}

// Stats combines snapshot and store statistics.
type Stats struct {
	Corpus kb.Stats       `json:"corpus"`
	Store  *store.DBStats `json:"store,omitempty"`
}

// Deps are the collaborators wired by NewWithDeps. Every field is
// optional. Without Vector and Lexical an in-memory index is built over
// the snapshot.
type Deps struct {
	Encoder      llm.Encoder
	CrossEncoder llm.CrossEncoder
	NLI          llm.NLI
	Vector       retrieval.VectorIndex
	Lexical      retrieval.LexicalIndex

	// Store receives the query log and answers Stats. It is closed with
	// the engine.
	Store *store.Store

	closers []func() error
}

// QueryOption configures query behavior.
type QueryOption func(*queryOptions)

type queryOptions struct {
	requestID string
	skipLog   bool
}

// WithRequestID sets the trace id instead of generating one.
func WithRequestID(id string) QueryOption {
	return func(o *queryOptions) { o.requestID = id }
}

// WithoutLog keeps the request out of the query log.
func WithoutLog() QueryOption {
	return func(o *queryOptions) { o.skipLog = true }
}

const apologyText = "Xin lỗi, đã có lỗi xảy ra khi xử lý câu hỏi của bạn. Vui lòng thử lại sau."

// engine is the concrete implementation of Engine.
type engine struct {
	cfg  Config
	snap *kb.Snapshot

	rewriter   *nlu.Rewriter
	resolver   *entity.Resolver
	classifier *intent.Classifier
	detector   *conflict.Detector
	retriever  *retrieval.Orchestrator
	filter     *rerank.Filter
	synth      *synth.Synthesizer
	verifier   *verify.Verifier

	store   *store.Store
	closers []func() error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New creates an engine with the given configuration. It opens the
// corpus store, imports cfg.CorpusFiles when the store is empty, embeds
// records that have no vector yet and connects the configured oracles.
func New(cfg Config) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx := context.Background()

	k, err := loadKnowledge(cfg.KnowledgePath)
	if err != nil {
		return nil, err
	}

	// Resolve database path from config (DBPath > DBName+StorageDir > default)
	dbPath := cfg.resolveDBPath()
	s, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	deps := Deps{Store: s, Vector: s, Lexical: s}
	fail := func(err error) (Engine, error) {
		for _, c := range deps.closers {
			c()
		}
		s.Close()
		return nil, err
	}

	docs, err := s.LoadDocuments(ctx)
	if err != nil {
		return fail(fmt.Errorf("loading documents: %w", err))
	}
	if len(docs) == 0 && len(cfg.CorpusFiles) > 0 {
		reg := parser.NewRegistry()
		for _, path := range cfg.CorpusFiles {
			if _, err := Import(ctx, s, reg, path); err != nil {
				return fail(err)
			}
		}
		if docs, err = s.LoadDocuments(ctx); err != nil {
			return fail(fmt.Errorf("loading documents: %w", err))
		}
	}
	if len(docs) == 0 {
		return fail(fmt.Errorf("%w in %s", ErrNoCorpus, dbPath))
	}

	enc, err := llm.NewEncoder(cfg.Embedding)
	switch {
	case errors.Is(err, llm.ErrNoProvider):
		slog.Warn("engine: no embedding provider, semantic search uses lexical index only")
	case err != nil:
		return fail(fmt.Errorf("creating embedding provider: %w", err))
	default:
		var disk llm.VectorCache
		if cfg.EmbedCacheDir != "" {
			bc, err := llm.OpenBadgerCache(cfg.EmbedCacheDir)
			if err != nil {
				return fail(fmt.Errorf("opening embedding cache: %w", err))
			}
			deps.closers = append(deps.closers, bc.Close)
			disk = bc
		}
		deps.Encoder = llm.NewCachedEncoder(enc, cfg.Embedding.Model, cfg.EmbedCacheTTL, disk)

		// Vector search stays best-effort: an unreachable encoder degrades
		// retrieval to lexical search instead of preventing startup.
		if n, err := EmbedCorpus(ctx, s, deps.Encoder, cfg.EmbedBatch); err != nil {
			slog.Warn("engine: embedding corpus failed", "embedded", n, "error", err)
		}
	}

	ce, err := llm.NewCrossEncoder(cfg.CrossEncoder)
	if err = optional(err); err != nil {
		return fail(fmt.Errorf("creating cross-encoder: %w", err))
	}
	deps.CrossEncoder = ce
	nli, err := llm.NewNLI(cfg.NLI)
	if err = optional(err); err != nil {
		return fail(fmt.Errorf("creating nli: %w", err))
	}
	deps.NLI = nli

	eng, err := newEngine(cfg, kb.Build(docs, k), deps)
	if err != nil {
		s.Close()
		return nil, err
	}
	return eng, nil
}

// NewWithDeps creates an engine over snap with injected collaborators.
func NewWithDeps(cfg Config, snap *kb.Snapshot, deps Deps) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if snap == nil || snap.Len() == 0 {
		return nil, ErrNoCorpus
	}
	if deps.Vector == nil && deps.Lexical == nil {
		idx, err := retrieval.NewMemoryIndex(context.Background(), snap, deps.Encoder, cfg.EmbedBatch)
		if err != nil {
			return nil, fmt.Errorf("building memory index: %w", err)
		}
		deps.Vector, deps.Lexical = idx, idx
	}
	return newEngine(cfg, snap, deps)
}

func newEngine(cfg Config, snap *kb.Snapshot, deps Deps) (Engine, error) {
	filter, err := rerank.New(snap, deps.CrossEncoder, deps.NLI, cfg.Rerank)
	if err != nil {
		for _, c := range deps.closers {
			c()
		}
		return nil, err
	}
	resolver := entity.NewResolver(snap, cfg.Entity)
	e := &engine{
		cfg:        cfg,
		snap:       snap,
		rewriter:   nlu.NewRewriter(snap, cfg.NLU),
		resolver:   resolver,
		classifier: intent.NewClassifier(resolver),
		detector:   conflict.NewDetector(snap),
		retriever:  retrieval.New(snap, deps.Encoder, deps.Vector, deps.Lexical, cfg.Retrieval),
		filter:     filter,
		synth:      synth.New(snap, cfg.Synth),
		verifier:   verify.New(snap, cfg.Verify),
		store:      deps.Store,
		closers:    deps.closers,
	}
	st := snap.Stats()
	slog.Info("engine: ready", "documents", st.Documents, "dated", st.Dated,
		"min_year", st.MinYear, "max_year", st.MaxYear,
		"vector", deps.Vector != nil, "encoder", deps.Encoder != nil,
		"cross_encoder", deps.CrossEncoder != nil, "nli", deps.NLI != nil)
	return e, nil
}

func loadKnowledge(path string) (*kb.Knowledge, error) {
	if path == "" {
		return kb.DefaultKnowledge()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening knowledge base: %w", err)
	}
	defer f.Close()
	return kb.LoadKnowledge(f)
}

// optional ignores the error of an unconfigured oracle.
func optional(err error) error {
	if errors.Is(err, llm.ErrNoProvider) {
		return nil
	}
	return err
}

// Query runs the pipeline. A cancelled ctx ends in the no-data answer.
func (e *engine) Query(ctx context.Context, question string, opts ...QueryOption) (ans *Answer) {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.requestID == "" {
		o.requestID = uuid.NewString()
	}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("query: panic", "request_id", o.requestID, "panic", r, "stack", string(debug.Stack()))
			ans = apology(o.requestID, fmt.Sprintf("panic: %v", r))
		}
		ans.Trace.ElapsedMs = time.Since(start).Milliseconds()
		if !o.skipLog {
			e.logQuery(ctx, question, ans)
		}
	}()

	if e.closed.Load() {
		return apology(o.requestID, ErrStoreClosed.Error())
	}
	ans = &Answer{Trace: Trace{RequestID: o.requestID}}
	e.answer(ctx, question, ans)

	slog.Debug("query: answered", "request_id", o.requestID, "intent", ans.Intent,
		"outcome", ans.Outcome, "strategy", ans.Trace.Strategy, "sources", len(ans.Sources))
	return ans
}

func apology(requestID, reason string) *Answer {
	return &Answer{
		Text:    apologyText,
		Intent:  intent.SemanticFallback,
		Outcome: OutcomeInternalError,
		Sources: []Source{},
		Trace:   Trace{RequestID: requestID, Error: reason},
	}
}

func (e *engine) answer(ctx context.Context, question string, ans *Answer) {
	tr := &ans.Trace
	stage := stepper(tr)

	rw := e.rewriter.Rewrite(question)
	tr.Rewritten, tr.Variants, tr.Corrections = rw.Primary, rw.Variants, rw.Corrections
	stage("rewrite", rw.Primary)

	a := e.classifier.Classify(rw.Primary)
	tr.Rule = a.Rule
	stage("intent", string(a.Intent))

	res := e.resolver.Resolve(rw.Primary, rw.Variants)
	var same entity.Identity
	if a.Intent == intent.Relationship || a.Intent == intent.Definition {
		same = e.resolver.SameEntity(rw.Primary)
	}
	stage("entity", strings.Join(res.Names(), ", "))

	c := constraint.Extract(rw, a, res, same, constraint.DefaultBounds())
	ans.Intent, ans.QuestionType = c.Intent, c.QuestionType
	stage("constraint", c.Years.String())

	if v := e.detector.Detect(&c); v.IsConflicting {
		stage("conflict", fmt.Sprintf("phase %d", v.Phase))
		ans.Conflict = &v
		e.finish(ans, e.synth.Conflict(v.Reason), OutcomeConflict, nil)
		ans.Confidence = 1
		tr.Error = ErrConflict.Error()
		return
	}

	out := e.retriever.Retrieve(ctx, &c)
	tr.Strategy, tr.Fallback = out.Strategy, out.Fallback
	tr.Attempts, tr.Searches, tr.Retrieved = out.Attempts, out.Searches, len(out.Candidates)
	stage("retrieval", string(out.Kind))

	switch out.Kind {
	case retrieval.KindCanned:
		e.finish(ans, e.synth.Synthesize(synth.Input{Constraint: &c}), OutcomeCanned, nil)
		ans.Confidence = 1
		return
	case retrieval.KindIdentity:
		e.finish(ans, e.synth.SameEntity(c.SameEntity), OutcomeIdentity, nil)
		ans.Confidence = 1
		return
	case retrieval.KindNoResults:
		e.finish(ans, e.synth.NoData(&c), OutcomeNoResults, nil)
		tr.Error = ErrNoResults.Error()
		return
	}

	cands := e.filter.Apply(ctx, out.Candidates, &c)
	tr.Reranked = len(cands)
	stage("rerank", fmt.Sprintf("%d/%d", len(cands), len(out.Candidates)))

	draft := e.synth.Synthesize(synth.Input{Constraint: &c, Candidates: cands})
	stage("synth", string(draft.Template))
	if draft.Template == synth.TemplateNoData {
		e.finish(ans, draft, OutcomeNoResults, nil)
		tr.Error = ErrNoResults.Error()
		return
	}
	if !draft.Template.Factual() {
		e.finish(ans, draft, OutcomeCanned, nil)
		ans.Confidence = 1
		return
	}

	vr := e.verifier.Verify(draft.Text, &c, draft.Used, cands)
	stage("verify", vr.Severity.String())
	ans.Verification = &vr

	if vr.Severity == verify.HardFail {
		slog.Warn("query: verification failed, using conservative answer",
			"request_id", tr.RequestID, "checks", vr.Checks)
		cons := e.synth.Conservative(cands)
		e.finish(ans, cons, OutcomeConservative, &vr)
		tr.Error = ErrHardVerification.Error()
		return
	}
	draft.Text = vr.Text(draft.Text)
	e.finish(ans, draft, OutcomeAnswered, &vr)
}

// finish sets the answer text and sources from d. Verified answers also
// get a confidence score.
func (e *engine) finish(ans *Answer, d synth.Draft, outcome Outcome, vr *verify.Result) {
	ans.Text = d.Text
	ans.Outcome = outcome
	ans.Trace.Template = d.Template
	ans.Sources = sourcesOf(d.Used)
	if vr != nil {
		ans.Confidence = verify.Confidence(d.Text, *vr, d.Used, e.cfg.Confidence)
	}
}

// stepper returns a func appending a timed Step to tr for each stage.
func stepper(tr *Trace) func(stage, output string) {
	last := time.Now()
	return func(stage, output string) {
		now := time.Now()
		tr.Steps = append(tr.Steps, Step{Stage: stage, Output: output, ElapsedMs: now.Sub(last).Milliseconds()})
		last = now
	}
}

func (e *engine) logQuery(ctx context.Context, question string, ans *Answer) {
	if e.store == nil || !e.cfg.LogQueries || e.closed.Load() {
		return
	}
	sources := make([]string, len(ans.Sources))
	for i, s := range ans.Sources {
		sources[i] = s.ID
	}
	severity := ""
	if ans.Verification != nil {
		severity = ans.Verification.Severity.String()
	}
	// The log entry is written even when the request was cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	err := e.store.LogQuery(ctx, store.QueryLog{
		RequestID:  ans.Trace.RequestID,
		Query:      question,
		Rewritten:  ans.Trace.Rewritten,
		Answer:     ans.Text,
		Intent:     string(ans.Intent),
		Outcome:    string(ans.Outcome),
		Severity:   severity,
		Confidence: ans.Confidence,
		Strategy:   ans.Trace.Strategy,
		Sources:    sources,
		LatencyMS:  ans.Trace.ElapsedMs,
	})
	if err != nil {
		slog.Warn("query: logging failed", "request_id", ans.Trace.RequestID, "error", err)
	}
}

// Stats returns snapshot statistics, plus store counts when a store is
// attached.
func (e *engine) Stats(ctx context.Context) (*Stats, error) {
	if e.closed.Load() {
		return nil, ErrStoreClosed
	}
	st := &Stats{Corpus: e.snap.Stats()}
	if e.store != nil {
		db, err := e.store.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("store stats: %w", err)
		}
		st.Store = db
	}
	return st, nil
}

func (e *engine) Snapshot() *kb.Snapshot { return e.snap }

// Close releases resources. Later calls return the first result.
func (e *engine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.filter.Release()
		var errs []error
		for _, c := range e.closers {
			errs = append(errs, c())
		}
		if e.store != nil {
			errs = append(errs, e.store.Close())
		}
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}
