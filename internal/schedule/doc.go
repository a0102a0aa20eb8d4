// Package schedule is the submission surface application code uses to run
// work now, later, repeatedly or in the background, globally or bound to an
// entity or a location.
//
// The same calls work on a single global tick thread and on a region-parallel
// host. The execution mode is resolved once (see Detector), a Backend for it
// is built once, and the Scheduler forwards every call to that Backend.
package schedule
