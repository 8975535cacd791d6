package mockbackend

import (
	"net/http"
	"sync"

	apperrors "github.com/echostash/echostash-automation/internal/errors"
)

type fault struct {
	status    int
	remaining int
}

// faults injects failures ahead of the real handlers, keyed by exact path.
type faults struct {
	mu      sync.Mutex
	pending map[string][]*fault
	hits    map[string]int
}

func newFaults() *faults {
	return &faults{pending: map[string][]*fault{}, hits: map[string]int{}}
}

func (f *faults) add(path string, status, n int) {
	if n <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[path] = append(f.pending[path], &fault{status: status, remaining: n})
}

func (f *faults) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = map[string][]*fault{}
}

// take consumes one injected failure for path, if any.
func (f *faults) take(path string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[path]++

	queue := f.pending[path]
	if len(queue) == 0 {
		return 0, false
	}
	head := queue[0]
	head.remaining--
	if head.remaining <= 0 {
		queue = queue[1:]
	}
	if len(queue) == 0 {
		delete(f.pending, path)
	} else {
		f.pending[path] = queue
	}
	return head.status, true
}

func (f *faults) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *faults) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status, ok := f.take(r.URL.Path); ok {
			apperrors.RespondWithError(w, r, apperrors.NewStatusError(status, "injected failure"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Hits reports how many requests reached path, injected failures included.
func (s *Server) Hits(path string) int {
	return s.faults.count(path)
}
