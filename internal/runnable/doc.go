// Package runnable holds reusable scheduling patterns built on the schedule
// facade: a Poller that watches an entity until a condition settles, and a
// Timer that allows at most one active repeating schedule per owner.
package runnable
