package ui

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndex(t *testing.T) {
	h := NewHandler("http://car.local:3000/")

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	body := w.Body.String()
	assert.Contains(t, body, `API_BASE_URL = "http://car.local:3000"`)
	assert.Contains(t, body, "<title>Car Control</title>")
	assert.Contains(t, body, `class="switches-grid"`)
	assert.NotContains(t, body, "{{API_BASE_URL}}")
}

func TestStaticFiles(t *testing.T) {
	h := NewHandler("")

	tests := []struct {
		path string
		want int
	}{
		{"/static/app.js", http.StatusOK},
		{"/static/style.css", http.StatusOK},
		{"/static/nonexistent.css", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
