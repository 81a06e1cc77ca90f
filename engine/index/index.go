// Package index runs documents through the indexing pipeline: normalize,
// chunk, embed, upsert. Each document moves through the stages
// independently, so one bad file never fails a batch.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docent-ai/docent/engine/chunk"
	"github.com/docent-ai/docent/engine/domain"
	"github.com/docent-ai/docent/engine/normalize"
	"github.com/docent-ai/docent/engine/semantic"
	"github.com/docent-ai/docent/pkg/fn"
	"github.com/docent-ai/docent/pkg/metrics"
)

// EmbedBatchSize is the max chunks per embedding request.
const EmbedBatchSize = 100

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex persists and evicts chunk vectors under a namespace.
// DeleteFrom trims a document's points at or past a sequence index.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, entries []semantic.Entry) error
	DeleteFrom(ctx context.Context, namespace, docID string, fromSequence int) error
}

// Deps holds the external dependencies for the indexing pipeline.
type Deps struct {
	Embedder Embedder
	Index    VectorIndex
	Config   domain.Config
	Retry    fn.RetryOpts
	Logger   *slog.Logger
	Metrics  *metrics.Registry
}

// Service owns the per-document pipeline.
type Service struct {
	normalizer *normalize.Normalizer
	chunker    *chunk.Chunker
	deps       Deps
	log        *slog.Logger
}

// New constructs a Service. Chunk geometry comes from deps.Config.
func New(deps Deps) (*Service, error) {
	chunker, err := chunk.New(deps.Config)
	if err != nil {
		return nil, err
	}
	if deps.Retry.MaxAttempts == 0 {
		deps.Retry = fn.DefaultRetry
	}
	if deps.Retry.Abort == nil {
		deps.Retry.Abort = func(err error) bool {
			var capErr *domain.CapabilityError
			return errors.As(err, &capErr) && !capErr.Retryable()
		}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		normalizer: normalize.New(),
		chunker:    chunker,
		deps:       deps,
		log:        log,
	}, nil
}

// DocReport describes one successfully indexed document.
type DocReport struct {
	DocID        string `json:"doc_id"`
	Source       string `json:"source"`
	ChunkCount   int    `json:"chunks_created"`
	VectorsCount int    `json:"vectors_stored"`
}

// Failure describes one document the pipeline rejected, with the stage
// that rejected it.
type Failure struct {
	DocID  string `json:"doc_id"`
	Source string `json:"source"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Report aggregates a batch. DocumentsProcessed counts successes only;
// failed documents are listed in Failures.
type Report struct {
	DocumentsProcessed int         `json:"documents_processed"`
	DocumentsTotal     int         `json:"documents_total"`
	ChunksCreated      int         `json:"chunks_created"`
	VectorsStored      int         `json:"vectors_stored"`
	Failures           []Failure   `json:"failures,omitempty"`
	Documents          []DocReport `json:"documents,omitempty"`
}

// IndexDocument runs one document through the full pipeline. Existing
// vectors for the document are dropped first, so re-indexing replaces
// rather than accumulates.
func (s *Service) IndexDocument(ctx context.Context, doc domain.Document) (DocReport, error) {
	start := time.Now()
	result := s.pipeline()(ctx, doc)
	if result.IsErr() {
		_, err := result.Unwrap()
		s.count("docent_index_failures_total", 1)
		return DocReport{}, err
	}
	report, _ := result.Unwrap()

	s.count("docent_documents_indexed_total", 1)
	s.count("docent_chunks_created_total", int64(report.ChunkCount))
	s.count("docent_vectors_stored_total", int64(report.VectorsCount))
	s.observe("docent_index_duration_seconds", start)
	s.log.Info("index: document complete",
		"doc_id", report.DocID,
		"source", report.Source,
		"chunks", report.ChunkCount,
		"duration", time.Since(start),
	)
	return report, nil
}

// IndexAll indexes a batch with per-document isolation. It stops early
// only when ctx is cancelled; a document failure is recorded and the
// batch moves on.
func (s *Service) IndexAll(ctx context.Context, docs []domain.Document) (Report, error) {
	report := Report{DocumentsTotal: len(docs)}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		dr, err := s.IndexDocument(ctx, doc)
		if err != nil {
			s.log.Warn("index: document failed",
				"doc_id", doc.ID,
				"source", doc.Name,
				"stage", failedStage(err),
				"error", err,
			)
			report.Failures = append(report.Failures, Failure{
				DocID:  doc.ID,
				Source: doc.Name,
				Stage:  failedStage(err),
				Reason: err.Error(),
			})
			continue
		}

		report.DocumentsProcessed++
		report.ChunksCreated += dr.ChunkCount
		report.VectorsStored += dr.VectorsCount
		report.Documents = append(report.Documents, dr)
	}

	s.log.Info("index: batch complete",
		"processed", report.DocumentsProcessed,
		"total", report.DocumentsTotal,
		"chunks", report.ChunksCreated,
	)
	return report, nil
}

// pipeline composes the per-document stages. Stage names recorded in
// errors drive failure reporting.
func (s *Service) pipeline() fn.Stage[domain.Document, DocReport] {
	normalized := fn.Traced("index.normalize", s.normalizeStage())
	chunked := fn.Then(normalized, fn.Traced("index.chunk", s.chunkStage()))
	embedded := fn.Then(chunked, fn.Traced("index.embed", s.embedStage()))
	return fn.Then(embedded, fn.Traced("index.upsert", s.upsertStage()))
}

func (s *Service) normalizeStage() fn.Stage[domain.Document, domain.NormalizedText] {
	return func(ctx context.Context, doc domain.Document) fn.Result[domain.NormalizedText] {
		text, err := s.normalizer.Normalize(doc)
		if err != nil {
			return fn.Err[domain.NormalizedText](atStage(StageNormalize, err))
		}
		return fn.Ok(text)
	}
}

type chunkedDoc struct {
	text   domain.NormalizedText
	chunks []domain.Chunk
}

type embeddedDoc struct {
	chunkedDoc
	entries []semantic.Entry
}

func (s *Service) chunkStage() fn.Stage[domain.NormalizedText, chunkedDoc] {
	return func(ctx context.Context, text domain.NormalizedText) fn.Result[chunkedDoc] {
		chunks, err := s.chunker.Split(text)
		if err != nil {
			return fn.Err[chunkedDoc](atStage(StageChunk, err))
		}
		return fn.Ok(chunkedDoc{text: text, chunks: chunks})
	}
}

// embedStage embeds chunk batches with bounded parallelism. Each batch
// call retries on its own before the stage gives up.
func (s *Service) embedStage() fn.Stage[chunkedDoc, embeddedDoc] {
	return func(ctx context.Context, doc chunkedDoc) fn.Result[embeddedDoc] {
		batches := fn.Batch(doc.chunks, EmbedBatchSize)

		results := fn.ParMapResult(batches, s.deps.Config.EmbedWorkers, func(batch []domain.Chunk) fn.Result[[]semantic.Entry] {
			return fn.Retry(ctx, s.deps.Retry, func(ctx context.Context) fn.Result[[]semantic.Entry] {
				return s.embedBatch(ctx, batch)
			})
		})

		entries := make([]semantic.Entry, 0, len(doc.chunks))
		for _, r := range results {
			batch, err := r.Unwrap()
			if err != nil {
				return fn.Err[embeddedDoc](atStage(StageEmbed, err))
			}
			entries = append(entries, batch...)
		}
		return fn.Ok(embeddedDoc{chunkedDoc: doc, entries: entries})
	}
}

func (s *Service) embedBatch(ctx context.Context, batch []domain.Chunk) fn.Result[[]semantic.Entry] {
	texts := fn.Map(batch, func(c domain.Chunk) string { return c.Text })
	vectors, err := s.deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fn.Err[[]semantic.Entry](err)
	}
	if len(vectors) != len(batch) {
		return fn.Errf[[]semantic.Entry]("embed returned %d vectors for %d chunks", len(vectors), len(batch))
	}

	entries := make([]semantic.Entry, len(batch))
	for i, c := range batch {
		entries[i] = semantic.Entry{Chunk: c, Embedding: vectors[i]}
	}
	return fn.Ok(entries)
}

func (s *Service) upsertStage() fn.Stage[embeddedDoc, DocReport] {
	return func(ctx context.Context, doc embeddedDoc) fn.Result[DocReport] {
		ns := s.deps.Config.Namespace
		docID := doc.text.DocID

		// Deterministic point IDs make the upsert replace matching
		// sequences in place; only then are stale higher sequences
		// trimmed. A failure part-way never evicts vectors it has not
		// replaced.
		if err := s.deps.Index.Upsert(ctx, ns, doc.entries); err != nil {
			return fn.Err[DocReport](atStage(StageUpsert, err))
		}
		if err := s.deps.Index.DeleteFrom(ctx, ns, docID, len(doc.entries)); err != nil {
			return fn.Err[DocReport](atStage(StageUpsert, fmt.Errorf("trim stale vectors: %w", err)))
		}

		return fn.Ok(DocReport{
			DocID:        docID,
			Source:       doc.text.Source,
			ChunkCount:   len(doc.chunks),
			VectorsCount: len(doc.entries),
		})
	}
}

func (s *Service) count(name string, n int64) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.Counter(name, "").Add(n)
	}
}

func (s *Service) observe(name string, start time.Time) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.Histogram(name, "", nil).Since(start)
	}
}
