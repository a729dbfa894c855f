package response

import (
	"encoding/json"
	"net/http"
	"strconv"
)

func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"error": msg})
}

func ValidationFailed(w http.ResponseWriter, msg string, errs []string) {
	JSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":             msg,
		"validation_errors": errs,
	})
}

// ParsePagination reads page and page_size from the query string. Absent
// parameters fall back to the defaults; present values pass through untouched
// so the query validator can reject out-of-range input.
func ParsePagination(r *http.Request) (page, pageSize int) {
	page, pageSize = 1, 20
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		page, _ = strconv.Atoi(v)
	}
	if v := q.Get("page_size"); v != "" {
		pageSize, _ = strconv.Atoi(v)
	}
	return
}
