package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/gradestats/internal/adapters/http/api"
	"github.com/okian/gradestats/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeService implements api.Dependencies.
type fakeService struct {
	classes   map[int][]model.ClassAverage
	global    model.Statistics
	perClass  map[string]model.Statistics
	lastClass string
	queryErr  error
	ingestErr error
	seen      map[string]bool
	ingested  []model.ScoreRecord
}

func newFakeService() *fakeService {
	return &fakeService{
		classes: map[int][]model.ClassAverage{
			1: {{ClassID: "C1", Avg: 84.5}, {ClassID: "C2", Avg: math.NaN()}},
		},
		global: model.Statistics{Total: 4, AboveThreshold: 3, Percentage: 75, Threshold: 70},
		perClass: map[string]model.Statistics{
			"C1":       {Total: 2, AboveThreshold: 1, Percentage: 50, Threshold: 70},
			"math/101": {Total: 5, AboveThreshold: 5, Percentage: 100, Threshold: 70},
		},
		seen: make(map[string]bool),
	}
}

func (f *fakeService) LearnerClassAverages(_ context.Context, id int) ([]model.ClassAverage, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.classes[id], nil
}

func (f *fakeService) GlobalStatistics(context.Context) (model.Statistics, error) {
	return f.global, f.queryErr
}

func (f *fakeService) ClassStatistics(_ context.Context, id string) (model.Statistics, error) {
	f.lastClass = id
	if f.queryErr != nil {
		return model.Statistics{}, f.queryErr
	}
	st, ok := f.perClass[id]
	if !ok {
		return model.Statistics{Threshold: 70}, nil
	}
	return st, nil
}

func (f *fakeService) Ingest(_ context.Context, r model.ScoreRecord) (model.Receipt, error) {
	if err := r.Validate(); err != nil {
		return model.Receipt{}, err
	}
	if f.ingestErr != nil {
		return model.Receipt{}, f.ingestErr
	}
	if r.RecordID == "" {
		r.RecordID = fmt.Sprintf("gen-%d", len(f.ingested))
	}
	if f.seen[r.RecordID] {
		return model.Receipt{RecordID: r.RecordID, Duplicate: true}, nil
	}
	f.seen[r.RecordID] = true
	f.ingested = append(f.ingested, r)
	return model.Receipt{RecordID: r.RecordID}, nil
}

func (f *fakeService) GetStats(context.Context) map[string]any {
	return map[string]any{"started": true, "records": len(f.ingested)}
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body
}

func TestServer_Routes(t *testing.T) {
	Convey("Given an API server", t, func() {
		svc := newFakeService()
		h := api.NewServer(svc).Routes(context.Background())

		Convey("Then /healthz reports ok", func() {
			w := serve(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Then /metrics serves the Prometheus exposition", func() {
			serve(h, http.MethodGet, "/healthz", "")
			w := serve(h, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "gradestats_http_requests_total")
		})

		Convey("Then /status returns the provider's map", func() {
			w := serve(h, http.MethodGet, "/status", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body["started"], ShouldEqual, true)
		})

		Convey("Then unknown routes are 404", func() {
			w := serve(h, http.MethodGet, "/grades/learner", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_LearnerClasses(t *testing.T) {
	Convey("Given an API server", t, func() {
		svc := newFakeService()
		h := api.NewServer(svc).Routes(context.Background())

		Convey("When the learner has grades", func() {
			w := serve(h, http.MethodGet, "/grades/learner/1/avg-class", "")

			Convey("Then each class is listed and NaN becomes null", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual,
					`[{"class_id":"C1","avg":84.5},{"class_id":"C2","avg":null}]`)
			})
		})

		Convey("When the learner has no grades", func() {
			w := serve(h, http.MethodGet, "/grades/learner/2/avg-class", "")

			Convey("Then it is 404 not_found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeError(w)["code"], ShouldEqual, "not_found")
			})
		})

		Convey("When the id is not an integer", func() {
			w := serve(h, http.MethodGet, "/grades/learner/abc/avg-class", "")

			Convey("Then it is 400 bad_request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When the store fails", func() {
			svc.queryErr = errors.New("disk on fire")
			w := serve(h, http.MethodGet, "/grades/learner/1/avg-class", "")

			Convey("Then it is 500", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decodeError(w)["message"], ShouldContainSubstring, "disk on fire")
			})
		})
	})
}

func TestServer_Statistics(t *testing.T) {
	Convey("Given an API server", t, func() {
		svc := newFakeService()
		h := api.NewServer(svc).Routes(context.Background())

		Convey("When asking for global statistics", func() {
			w := serve(h, http.MethodGet, "/grades/stats", "")

			Convey("Then the historical field names are used", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual,
					`{"total":4,"above70":3,"percAbove70":75,"threshold":70}`)
			})
		})

		Convey("When asking for a class", func() {
			w := serve(h, http.MethodGet, "/grades/stats/C1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"total":2`)
		})

		Convey("When asking for an empty class", func() {
			w := serve(h, http.MethodGet, "/grades/stats/NOPE", "")

			Convey("Then it is 200 with zeros", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual,
					`{"total":0,"above70":0,"percAbove70":0,"threshold":70}`)
			})
		})

		Convey("When the class id carries an escaped slash", func() {
			w := serve(h, http.MethodGet, "/grades/stats/math%2F101", "")

			Convey("Then the service sees the decoded id", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(svc.lastClass, ShouldEqual, "math/101")
				So(w.Body.String(), ShouldContainSubstring, `"total":5`)
			})
		})

		Convey("When the class id carries other escapes", func() {
			serve(h, http.MethodGet, "/grades/stats/C%201", "")
			So(svc.lastClass, ShouldEqual, "C 1")

			serve(h, http.MethodGet, "/grades/stats/a%25b", "")
			So(svc.lastClass, ShouldEqual, "a%b")

			serve(h, http.MethodGet, "/grades/stats/a%25b%2Fc", "")
			So(svc.lastClass, ShouldEqual, "a%b/c")
		})

		Convey("When the query fails", func() {
			svc.queryErr = errors.New("boom")
			w := serve(h, http.MethodGet, "/grades/stats", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("When the store holds a malformed entry", func() {
			svc.queryErr = fmt.Errorf("record r9: %w", model.ErrMalformedEntry)

			Convey("Then every query reports an internal error", func() {
				for _, path := range []string{"/grades/stats", "/grades/stats/C1", "/grades/learner/1/avg-class"} {
					w := serve(h, http.MethodGet, path, "")
					So(w.Code, ShouldEqual, http.StatusInternalServerError)
					So(decodeError(w)["code"], ShouldEqual, "internal")
				}
			})
		})
	})
}

func TestServer_PostGrade(t *testing.T) {
	Convey("Given an API server", t, func() {
		svc := newFakeService()
		h := api.NewServer(svc).Routes(context.Background())
		body := `{"record_id":"r1","learner_id":7,"class_id":"C1","scores":[{"type":"exam","score":90}]}`

		Convey("When a valid record is posted", func() {
			w := serve(h, http.MethodPost, "/grades", body)

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"status":"accepted"`)
				So(w.Body.String(), ShouldContainSubstring, `"record_id":"r1"`)
				So(len(svc.ingested), ShouldEqual, 1)
				So(svc.ingested[0].LearnerID, ShouldEqual, 7)
				So(*svc.ingested[0].Scores[0].Score, ShouldEqual, 90.0)
			})

			Convey("And posting it again is a duplicate", func() {
				w := serve(h, http.MethodPost, "/grades", body)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
				So(len(svc.ingested), ShouldEqual, 1)
			})
		})

		Convey("When the body is not JSON", func() {
			w := serve(h, http.MethodPost, "/grades", `{`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When learner_id is missing", func() {
			w := serve(h, http.MethodPost, "/grades", `{"class_id":"C1","scores":[]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["message"], ShouldContainSubstring, "learner_id")
		})

		Convey("When class_id is missing", func() {
			w := serve(h, http.MethodPost, "/grades", `{"learner_id":1,"scores":[]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When an entry is malformed", func() {
			svc.ingestErr = fmt.Errorf("scores[0]: %w", model.ErrMalformedEntry)
			w := serve(h, http.MethodPost, "/grades", body)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the body exceeds the size cap", func() {
			big := `{"record_id":"big","learner_id":1,"class_id":"` + strings.Repeat("x", 1<<20) + `","scores":[]}`
			w := serve(h, http.MethodPost, "/grades", big)

			Convey("Then it is 413 and nothing is ingested", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				So(decodeError(w)["code"], ShouldEqual, "too_large")
				So(len(svc.ingested), ShouldEqual, 0)
			})
		})

		Convey("When the queue is full", func() {
			svc.ingestErr = fmt.Errorf("%w: queue full", model.ErrBackpressure)
			w := serve(h, http.MethodPost, "/grades", body)

			Convey("Then it is 429 backpressure", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decodeError(w)["code"], ShouldEqual, "backpressure")
			})
		})

		Convey("When the service is not started", func() {
			svc.ingestErr = fmt.Errorf("%w: not started", model.ErrUnavailable)
			w := serve(h, http.MethodPost, "/grades", body)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestServer_CORS(t *testing.T) {
	Convey("Given a server restricted to one origin", t, func() {
		h := api.NewServer(newFakeService(), api.WithAllowedOrigins([]string{"https://grades.example"})).
			Routes(context.Background())

		Convey("When that origin sends a request", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			req.Header.Set("Origin", "https://grades.example")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then the origin is echoed back", func() {
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://grades.example")
			})
		})

		Convey("When another origin sends a request", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			req.Header.Set("Origin", "https://evil.example")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then no CORS header is set", func() {
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
			})
		})
	})
}

func TestError(t *testing.T) {
	Convey("Given operation-tagged errors", t, func() {
		cause := errors.New("cause")

		Convey("Then WrapKind matches both kind and cause", func() {
			err := api.WrapKind("op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "op: bad request: cause")
		})

		Convey("Then NewKind has no cause", func() {
			err := api.NewKind("op", api.ErrBackpressure)
			So(errors.Is(err, api.ErrBackpressure), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "op: backpressure")
		})

		Convey("Then Wrap is internal and nil-safe", func() {
			So(errors.Is(api.Wrap("op", cause), api.ErrInternal), ShouldBeTrue)
			So(api.Wrap("op", nil), ShouldBeNil)
			So(api.WrapKind("op", api.ErrNotFound, nil), ShouldBeNil)
		})
	})
}
