package scribblerest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/tj/assert"

	scribblecli "github.com/scribble-board/scribble/scribble-cli"
)

func TestMiddlewares(t *testing.T) {
	routes := Middlewares(scribblecli.NewService("test"), chi.NewRouter())
	routes.Get("/ping", CacheControl(func(w http.ResponseWriter, req *http.Request) {
		assert.NotNil(t, zerolog.Ctx(req.Context()))
		w.WriteHeader(http.StatusNoContent)
	}, 60))
	routes.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	t.Run("headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "https://board.example.com")
		w := httptest.NewRecorder()
		routes.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "max-age=60", w.Header().Get("Cache-Control"))
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "cross-origin", w.Header().Get("cross-origin-resource-policy"))
	})

	t.Run("recovers", func(t *testing.T) {
		w := httptest.NewRecorder()
		routes.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
