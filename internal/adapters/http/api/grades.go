package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/domain/types"
)

// GradeQueries is the read side of the grade service.
type GradeQueries interface {
	LearnerClassAverages(ctx context.Context, learnerID int) ([]model.ClassAverage, error)
	GlobalStatistics(ctx context.Context) (model.Statistics, error)
	ClassStatistics(ctx context.Context, classID string) (model.Statistics, error)
}

// Ingester accepts score records for asynchronous persistence.
type Ingester interface {
	Ingest(ctx context.Context, r model.ScoreRecord) (model.Receipt, error)
}

// GradesHandler serves the aggregate queries.
type GradesHandler struct {
	deps GradeQueries
}

// NewGradesHandler creates a new grades handler.
func NewGradesHandler(deps GradeQueries) *GradesHandler {
	return &GradesHandler{deps: deps}
}

// HandleLearnerClasses handles GET /grades/learner/{id}/avg-class.
func (h *GradesHandler) HandleLearnerClasses(w http.ResponseWriter, r *http.Request) {
	const op = "api.learner_classes"
	raw, err := pathParam(r, "id")
	if err != nil {
		writeKindError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeKindError(w, WrapKind(op, ErrBadRequest, fmt.Errorf("learner id %q is not an integer", raw)))
		return
	}

	rows, err := h.deps.LearnerClassAverages(r.Context(), id)
	if err != nil {
		writeKindError(w, classify(op, err))
		return
	}
	if len(rows) == 0 {
		writeKindError(w, WrapKind(op, ErrNotFound, fmt.Errorf("no grades for learner %d", id)))
		return
	}
	writeJSON(w, http.StatusOK, types.FromClassAverages(rows))
}

// HandleGlobalStats handles GET /grades/stats.
func (h *GradesHandler) HandleGlobalStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.global_stats"
	st, err := h.deps.GlobalStatistics(r.Context())
	if err != nil {
		writeKindError(w, classify(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromStatistics(st))
}

// HandleClassStats handles GET /grades/stats/{id}. An unknown class yields zeros.
func (h *GradesHandler) HandleClassStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.class_stats"
	classID, err := pathParam(r, "id")
	if err != nil {
		writeKindError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	st, err := h.deps.ClassStatistics(r.Context(), classID)
	if err != nil {
		writeKindError(w, classify(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromStatistics(st))
}

// pathParam returns the decoded route parameter. chi matches on RawPath when
// the request carries escapes such as %2F, leaving the parameter encoded.
func pathParam(r *http.Request, name string) (string, error) {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v, nil
	}
	decoded, err := url.PathUnescape(v)
	if err != nil {
		return "", fmt.Errorf("%s %q: %w", name, v, err)
	}
	return decoded, nil
}

// gradeRequest mirrors the OpenAPI schema for POST /grades.
type gradeRequest struct {
	RecordID  string             `json:"record_id"`
	LearnerID *int               `json:"learner_id"`
	ClassID   string             `json:"class_id"`
	Scores    []model.ScoreEntry `json:"scores"`
}

func (g gradeRequest) record() (model.ScoreRecord, error) {
	if g.LearnerID == nil {
		return model.ScoreRecord{}, fmt.Errorf("%w: missing learner_id", model.ErrInvalidRecord)
	}
	return model.ScoreRecord{
		RecordID:  g.RecordID,
		LearnerID: *g.LearnerID,
		ClassID:   g.ClassID,
		Scores:    g.Scores,
	}, nil
}

// maxGradeBodyBytes caps a POST /grades body.
const maxGradeBodyBytes = 1 << 20

type ackResponse struct {
	Status    string `json:"status"`
	RecordID  string `json:"record_id"`
	Duplicate bool   `json:"duplicate"`
}

// IngestHandler handles record submissions.
type IngestHandler struct {
	deps Ingester
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(deps Ingester) *IngestHandler {
	return &IngestHandler{deps: deps}
}

// HandlePostGrade handles POST /grades requests.
func (h *IngestHandler) HandlePostGrade(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_grade"
	var req gradeRequest
	body := http.MaxBytesReader(w, r.Body, maxGradeBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeKindError(w, WrapKind(op, ErrTooLarge, err))
			return
		}
		writeKindError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	rec, err := req.record()
	if err != nil {
		writeKindError(w, classifyIngest(op, err))
		return
	}

	receipt, err := h.deps.Ingest(r.Context(), rec)
	if err != nil {
		writeKindError(w, classifyIngest(op, err))
		return
	}
	if receipt.Duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", RecordID: receipt.RecordID, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", RecordID: receipt.RecordID})
}
