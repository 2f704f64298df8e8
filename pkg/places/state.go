package places

import (
	"sync"

	"github.com/sotomaque/emoji-map-sub000/pkg/model"
)

// fetchState accumulates the results of the concurrent bucket sub-fetches
// of one request. Places append in completion order; nothing is reordered
// or deduplicated.
type fetchState struct {
	mu        sync.Mutex
	places    []model.Place
	errs      []error
	completed int
	total     int
}

func newFetchState(total int) *fetchState {
	return &fetchState{total: total}
}

// addPlaces records a successful sub-fetch.
func (st *fetchState) addPlaces(places []model.Place) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.places = append(st.places, places...)
	st.completed++
}

// addError records a failed sub-fetch.
func (st *fetchState) addError(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.errs = append(st.errs, err)
	st.completed++
}

// snapshot returns copies of the accumulated places and errors.
func (st *fetchState) snapshot() ([]model.Place, []error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	places := make([]model.Place, len(st.places))
	copy(places, st.places)
	errs := make([]error, len(st.errs))
	copy(errs, st.errs)
	return places, errs
}

// progress returns how many sub-fetches have completed out of the total.
// Cancelled sub-fetches never complete, so completed can stay below total.
func (st *fetchState) progress() (int, int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.completed, st.total
}
