package catalog

import "errors"

// ErrLoad signals a missing source file or a malformed row, including
// duplicate (song, tier) keys. A failed load is fatal at startup: the
// process must not serve requests over a partially loaded catalog.
var ErrLoad = errors.New("catalog load failed")
