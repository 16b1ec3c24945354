package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"
)

func TestSwaggerHandler(t *testing.T) {
	convey.Convey("Given a swagger handler", t, func() {
		ctx := context.Background()

		type router interface {
			Mux
			http.Handler
		}
		cases := []struct {
			name string
			mux  router
		}{
			{"serve mux", http.NewServeMux()},
			{"chi router", chi.NewRouter()},
		}
		for _, tc := range cases {
			mux := tc.mux
			convey.Convey("When registering on a "+tc.name, func() {
				Register(ctx, mux)

				convey.Convey("Then it should handle /openapi.yaml route", func() {
					req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody)
					w := httptest.NewRecorder()
					mux.ServeHTTP(w, req)

					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
					convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
					convey.So(w.Body.Len(), convey.ShouldBeGreaterThan, 0)
				})

				convey.Convey("And it should handle /api-docs route", func() {
					req := httptest.NewRequest(http.MethodGet, "/api-docs", http.NoBody)
					w := httptest.NewRecorder()
					mux.ServeHTTP(w, req)

					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
					convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "text/html; charset=utf-8")
					convey.So(w.Body.String(), convey.ShouldContainSubstring, "redoc-container")
				})
			})
		}
	})
}

func TestOpenAPIDocument(t *testing.T) {
	convey.Convey("Given the embedded OpenAPI document", t, func() {
		var doc struct {
			OpenAPI string                    `yaml:"openapi"`
			Paths   map[string]map[string]any `yaml:"paths"`
		}
		err := yaml.Unmarshal(OpenAPI, &doc)

		convey.Convey("Then it parses and lists every grade route", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(doc.OpenAPI, convey.ShouldStartWith, "3.")
			convey.So(doc.Paths, convey.ShouldContainKey, "/grades")
			convey.So(doc.Paths, convey.ShouldContainKey, "/grades/learner/{id}/avg-class")
			convey.So(doc.Paths, convey.ShouldContainKey, "/grades/stats")
			convey.So(doc.Paths, convey.ShouldContainKey, "/grades/stats/{id}")
			convey.So(doc.Paths["/grades"], convey.ShouldContainKey, "post")
		})
	})
}
