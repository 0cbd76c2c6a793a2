package consultation

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/medrag/internal/emergency"
	"github.com/upb/medrag/internal/observability"
	"github.com/upb/medrag/internal/redact"
	"github.com/upb/medrag/models"
	"github.com/upb/medrag/services"
	"github.com/upb/medrag/services/embedding"
)

const (
	excerptChars      = 200
	queryPreviewRunes = 80
)

// QueryEmbedder turns a query into a vector
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocumentSearcher finds a user's documents by vector similarity
type DocumentSearcher interface {
	Match(ctx context.Context, embedding []float32, threshold float64, limit int, userID string) ([]*models.DocumentMatch, error)
}

// Recorder receives the audit record of each finished run
type Recorder interface {
	LogConsultation(c *models.Consultation) error
}

// Config holds retrieval defaults
type Config struct {
	SimilarityThreshold float64
	DefaultTopK         int
}

// Orchestrator runs the consultation pipeline:
// emergency check, optional retrieval, generation, assembly.
type Orchestrator struct {
	detector   *emergency.Detector
	embedder   QueryEmbedder
	searcher   DocumentSearcher
	generators *Registry
	recorder   Recorder
	cfg        Config
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewOrchestrator creates an orchestrator. recorder and metrics may be nil.
func NewOrchestrator(
	detector *emergency.Detector,
	embedder QueryEmbedder,
	searcher DocumentSearcher,
	generators *Registry,
	recorder Recorder,
	cfg Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *Orchestrator {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	return &Orchestrator{
		detector:   detector,
		embedder:   embedder,
		searcher:   searcher,
		generators: generators,
		recorder:   recorder,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
	}
}

// Agents lists the registered agent ids
func (o *Orchestrator) Agents() []string {
	return o.generators.List()
}

// Consult runs the pipeline for one request
func (o *Orchestrator) Consult(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx, o.logger).With(zap.String("user_id", req.UserID))

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, services.ErrEmptyQuery
	}

	record := models.NewConsultation(req.UserID, req.SessionID, query)
	logger.Debug("consultation started",
		zap.String("query_preview", redact.Preview(query, queryPreviewRunes)),
		zap.String("preferred_agent", req.Agent))

	if det := o.detector.Detect(query); det.IsEmergency {
		logger.Warn("emergency detected",
			zap.Strings("keywords", det.Matched),
			zap.String("query_preview", redact.Preview(query, queryPreviewRunes)),
			zap.String("confidence", det.Confidence()),
		)
		o.metrics.IncEmergency()
		o.metrics.ObserveConsultation(AgentEmergency, string(models.ConsultationOutcomeEmergency))

		res := emergencyResult(req, det.Matched)
		res.ConsultationID = record.ID
		res.ProcessingTime = time.Since(start)

		record.Outcome = models.ConsultationOutcomeEmergency
		record.EmergencyDetected = true
		o.finish(logger, record, res)
		return res, nil
	}

	gen, err := o.generators.Get(req.Agent)
	if err != nil {
		o.metrics.ObserveConsultation(req.Agent, "rejected")
		return nil, err
	}

	var docs []*models.DocumentMatch
	if gen.Retrieves(req.Profile) {
		docs = o.retrieve(ctx, logger, req.UserID, query, req.TopK)
	} else {
		logger.Debug("retrieval skipped", zap.String("agent", gen.ID()))
	}

	out, err := gen.Generate(ctx, &GenerateInput{
		UserID:      req.UserID,
		Query:       query,
		Docs:        docs,
		History:     req.History,
		Profile:     req.Profile,
		Temperature: req.Temperature,
	})
	if err != nil {
		if services.GetErrorType(err) == "" {
			err = services.WrapProcessing("Failed to generate response", err)
		}
		logger.Error("generation failed", zap.String("agent", gen.ID()), zap.Error(err))
		o.metrics.ObserveConsultation(gen.ID(), string(models.ConsultationOutcomeFailed))

		if record.SessionID == "" {
			record.SessionID = "consultation-" + req.UserID
		}
		record.AgentID = gen.ID()
		record.ProcessingTimeMs = time.Since(start).Milliseconds()
		record.WithError(services.GetErrorMessage(err))
		o.record(logger, record)
		return nil, err
	}

	res := &Result{
		ConsultationID: record.ID,
		Text:           out.Text,
		Sources:        toSources(docs),
		AgentID:        gen.ID(),
		Model:          out.Model,
		TokensUsed:     out.TokensUsed,
	}
	res.ConfidenceScore = confidence(res.Sources)
	safetyFraming(res, req)
	res.ProcessingTime = time.Since(start)

	o.metrics.ObserveConsultation(gen.ID(), string(models.ConsultationOutcomeCompleted))
	logger.Info("consultation completed",
		zap.String("agent", res.AgentID),
		zap.Int("sources", len(res.Sources)),
		zap.Bool("patient_mode", req.PatientMode()),
		zap.Duration("duration", res.ProcessingTime),
	)

	record.Outcome = models.ConsultationOutcomeCompleted
	o.finish(logger, record, res)
	return res, nil
}

// retrieve embeds the query and searches the user's documents. Failures
// yield an empty set.
func (o *Orchestrator) retrieve(ctx context.Context, logger *zap.Logger, userID, query string, topK int) []*models.DocumentMatch {
	if topK <= 0 {
		topK = o.cfg.DefaultTopK
	}

	vec, err := o.embedder.Embed(ctx, query)
	if err != nil {
		logger.Warn("query embedding failed, continuing without documents", zap.Error(err))
		o.metrics.ObserveRetrieval(0)
		return nil
	}

	matches, err := o.searcher.Match(ctx, embedding.Normalize(vec), o.cfg.SimilarityThreshold, topK, userID)
	if err != nil {
		logger.Warn("document search failed, continuing without documents", zap.Error(err))
		o.metrics.ObserveRetrieval(0)
		return nil
	}

	matches = rankMatches(matches, o.cfg.SimilarityThreshold, topK)
	o.metrics.ObserveRetrieval(len(matches))
	logger.Debug("documents retrieved", zap.Int("count", len(matches)))
	return matches
}

// rankMatches keeps matches at or above threshold, best first, at most topK
func rankMatches(matches []*models.DocumentMatch, threshold float64, topK int) []*models.DocumentMatch {
	out := make([]*models.DocumentMatch, 0, len(matches))
	for _, m := range matches {
		if m != nil && m.Similarity >= threshold {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

func toSources(docs []*models.DocumentMatch) []Source {
	sources := make([]Source, 0, len(docs))
	for _, d := range docs {
		sources = append(sources, Source{
			DocumentID: d.ID,
			Filename:   d.Filename,
			Similarity: d.Similarity,
			Excerpt:    excerpt(d.Content, excerptChars),
		})
	}
	return sources
}

// confidence is the best similarity, or nil without sources
func confidence(sources []Source) *float64 {
	if len(sources) == 0 {
		return nil
	}
	best := sources[0].Similarity
	for _, s := range sources[1:] {
		if s.Similarity > best {
			best = s.Similarity
		}
	}
	return &best
}

func (o *Orchestrator) finish(logger *zap.Logger, record *models.Consultation, res *Result) {
	record.SessionID = res.SessionID
	record.AgentID = res.AgentID
	record.Response = res.Text
	record.ProcessingTimeMs = res.ProcessingTimeMs()
	if data, err := json.Marshal(res.Sources); err == nil {
		record.Sources = data
	}
	o.record(logger, record)
}

func (o *Orchestrator) record(logger *zap.Logger, record *models.Consultation) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.LogConsultation(record); err != nil {
		logger.Debug("consultation audit record not queued", zap.Error(err))
	}
}
