// Package cron triggers named wall-clock schedules (cron expressions or
// fixed intervals) and submits each trigger through the schedule facade,
// either onto the global thread or onto the background pool.
package cron
