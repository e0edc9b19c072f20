package replay

import "errors"

// ErrEnrichment marks a change whose replay evidence could not be fetched.
// The change is rolled back; the engine keeps running.
var ErrEnrichment = errors.New("replay enrichment failed")
