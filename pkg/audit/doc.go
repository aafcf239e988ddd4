// Package audit records admission denials for operator review.
//
// Events are written asynchronously: the request path enqueues onto a
// buffered channel and a background worker drains it into the store,
// so a slow disk can never stall an admission decision. When the
// buffer is full the event is dropped and counted, not waited on.
//
// A retention pruner deletes events past a configured age, either on
// demand or on a cron schedule.
package audit
