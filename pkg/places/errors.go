package places

import "errors"

// ErrNoResults means a fetch completed without results and without
// failures: the backend had nothing for the request. Surfaced wrapped with
// the request kind.
var ErrNoResults = errors.New("no results")
