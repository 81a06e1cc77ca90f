package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/docent-ai/docent/engine/challenge"
	"github.com/docent-ai/docent/engine/domain"
	"github.com/docent-ai/docent/engine/index"
	"github.com/docent-ai/docent/engine/rag"
	"github.com/docent-ai/docent/engine/semantic"
	"github.com/docent-ai/docent/engine/summary"
	"github.com/docent-ai/docent/pkg/metrics"
)

type server struct {
	index      *index.Service
	answerer   *rag.Answerer
	challenger *challenge.Service
	summarizer *summary.Summarizer
	store      *semantic.Store
	namespace  string
	metrics    *metrics.Registry
	log        *slog.Logger
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// indexRequest is the JSON body for POST /api/index. Multipart uploads
// with a "files" field are accepted as well.
type indexRequest struct {
	Documents []index.Request `json:"documents"`
	Summarize bool            `json:"summarize,omitempty"`
}

type indexResponse struct {
	index.Report
	Summary string `json:"summary,omitempty"`
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(ct, "multipart/") {
		docs, err := readMultipart(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Documents = docs
		req.Summarize = r.FormValue("summarize") == "true"
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "no documents provided")
		return
	}

	docs := make([]domain.Document, 0, len(req.Documents))
	var rejected []index.Failure
	for _, dr := range req.Documents {
		doc, err := dr.Document(s.namespace)
		if err != nil {
			rejected = append(rejected, index.Failure{
				Source: dr.Name,
				Stage:  index.StageNormalize,
				Reason: err.Error(),
			})
			continue
		}
		docs = append(docs, doc)
	}

	report, err := s.index.IndexAll(r.Context(), docs)
	if err != nil {
		s.writeFailure(w, "index", err)
		return
	}
	report.DocumentsTotal += len(rejected)
	report.Failures = append(rejected, report.Failures...)

	resp := indexResponse{Report: report}
	if req.Summarize && report.DocumentsProcessed > 0 {
		if text, err := s.summarizer.Summarize(r.Context()); err != nil {
			s.log.Warn("post-index summary failed", "err", err)
		} else {
			resp.Summary = text
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func readMultipart(r *http.Request) ([]index.Request, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, err
	}
	var docs []index.Request
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		docs = append(docs, index.Request{Name: fh.Filename, Data: data})
	}
	return docs, nil
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := s.answerer.Ask(r.Context(), req.Question)
	if err != nil {
		s.writeFailure(w, "ask", err)
		return
	}

	outcome := "answered"
	if !answer.Found {
		outcome = "refused"
	}
	s.metrics.Counter(metrics.WithLabels("docent_queries_total", "outcome", outcome), "questions served").Inc()
	writeJSON(w, http.StatusOK, answer)
}

type challengeRequest struct {
	Count int `json:"count,omitempty"`
}

// challengeQuestion is the wire form of a question; the evidence chunks
// stay server-side.
type challengeQuestion struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

func (s *server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	questions, err := s.challenger.GenerateQuestions(r.Context(), req.Count)
	if err != nil {
		s.writeFailure(w, "challenge", err)
		return
	}

	out := make([]challengeQuestion, len(questions))
	for i, q := range questions {
		out[i] = challengeQuestion{ID: q.ID, Text: q.Text, Difficulty: q.Difficulty}
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": out})
}

type evaluateRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (s *server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	eval, err := s.challenger.Evaluate(r.Context(), req.Question, req.Answer)
	if err != nil {
		s.writeFailure(w, "evaluate", err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

// handleDeleteDocument removes one document's vectors by document ID.
func (s *server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")
	if docID == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}
	if err := s.store.DeleteDocument(r.Context(), s.namespace, docID); err != nil {
		s.writeFailure(w, "delete document", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "doc_id": docID})
}

// handleReset drops every vector in the namespace.
func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reset(r.Context(), s.namespace); err != nil {
		s.writeFailure(w, "reset", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context(), s.namespace)
	if err != nil {
		s.writeFailure(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"namespace": s.namespace,
		"vectors":   count,
	})
}

func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	text, err := s.summarizer.Summarize(r.Context())
	if err != nil {
		s.writeFailure(w, "summary", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": text})
}

// writeFailure maps engine errors onto HTTP statuses. Capability errors
// surface their remediation hint instead of transport details.
func (s *server) writeFailure(w http.ResponseWriter, op string, err error) {
	var capErr *domain.CapabilityError
	var inputErr *domain.InputError

	switch {
	case errors.As(err, &capErr):
		s.log.Error(op+" capability failure", "capability", capErr.Capability, "cause", capErr.Cause, "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": capErr.Capability + " unavailable",
			"hint":  capErr.Hint,
		})
	case errors.As(err, &inputErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "no indexed content to work with")
	default:
		s.log.Error(op+" failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
