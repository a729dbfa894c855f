package management

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edgefleet/armada/internal/app"
)

func TestWriteCommandResult_StatusMapping(t *testing.T) {
	cases := []struct {
		kind app.ResultKind
		want int
	}{
		{app.KindInvalid, http.StatusBadRequest},
		{app.KindNotFound, http.StatusNotFound},
		{app.KindConflict, http.StatusConflict},
		{app.KindInternal, http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeCommandResult(rec, app.CommandResult{Success: false, Kind: tc.kind, Error: "storage unavailable"}, http.StatusOK)
		if rec.Code != tc.want {
			t.Fatalf("kind %q: expected status %d, got %d", tc.kind, tc.want, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	writeCommandResult(rec, app.CommandResult{Success: true}, http.StatusCreated)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for success, got %d", rec.Code)
	}
}
