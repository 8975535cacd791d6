package mockbackend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/echostash/echostash-automation/internal/errors"
)

const maxRequestBody = 10 << 20

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, format string, args ...any) {
	apperrors.RespondWithError(w, r, apperrors.NewStatusError(status, fmt.Sprintf(format, args...)))
}

func badRequest(w http.ResponseWriter, r *http.Request, format string, args ...any) {
	apperrors.RespondWithError(w, r, apperrors.NewValidationError(fmt.Sprintf(format, args...)))
}

func conflict(w http.ResponseWriter, r *http.Request, format string, args ...any) {
	apperrors.RespondWithError(w, r, apperrors.NewConflictError(fmt.Sprintf(format, args...)))
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	apperrors.RespondWithError(w, r, apperrors.NewForbiddenError("Access denied"))
}

func notFound(w http.ResponseWriter, r *http.Request, what string) {
	apperrors.RespondWithError(w, r, apperrors.NewNotFoundError(what+" not found"))
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	rejectCredentials(w, r, "Full authentication is required to access this resource")
}

func rejectCredentials(w http.ResponseWriter, r *http.Request, message string) {
	apperrors.RespondWithError(w, r, apperrors.NewUnauthorizedError(message))
}

// respondPanic answers a recovered handler panic. The panic value is logged,
// never echoed to the caller.
func respondPanic(w http.ResponseWriter, r *http.Request, recovered any) {
	envelope := apperrors.NewInternalError("Internal server error")
	if updated, err := envelope.WithContext(map[string]interface{}{"panic": fmt.Sprint(recovered)}); err == nil {
		envelope = updated
	}
	apperrors.RespondWithError(w, r, envelope)
}

// decode reads a JSON body into out. An empty body leaves out untouched.
func decode(r *http.Request, out any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	return nil
}

// decodeOrReject decodes the body and writes a 400 when it is malformed.
func decodeOrReject(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := decode(r, out); err != nil {
		badRequest(w, r, "%s", err.Error())
		return false
	}
	return true
}

var errBadID = errors.New("invalid identifier")

// pathID parses a numeric chi URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// pageResult is the paginated envelope the backend returns.
type pageResult[T any] struct {
	Content       []T  `json:"content"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	Number        int  `json:"number"`
	Size          int  `json:"size"`
	First         bool `json:"first"`
	Last          bool `json:"last"`
}

const defaultPageSize = 20

// paginate slices items using the page/size query parameters (page is zero-based).
func paginate[T any](r *http.Request, items []T) pageResult[T] {
	page := queryInt(r, "page", 0)
	size := queryInt(r, "size", defaultPageSize)
	if size == 0 {
		size = defaultPageSize
	}

	total := len(items)
	totalPages := (total + size - 1) / size
	start := page * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	content := make([]T, 0, end-start)
	content = append(content, items[start:end]...)
	return pageResult[T]{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages,
		Number:        page,
		Size:          size,
		First:         page == 0,
		Last:          page >= totalPages-1,
	}
}

var templateVar = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// renderTemplate substitutes {{name}} placeholders. Unknown variables are left in place.
func renderTemplate(content string, variables map[string]string) string {
	return templateVar.ReplaceAllStringFunc(content, func(match string) string {
		name := templateVar.FindStringSubmatch(match)[1]
		if value, ok := variables[name]; ok {
			return value
		}
		return match
	})
}

// templateVariables lists the distinct placeholder names in content.
func templateVariables(content string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range templateVar.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
