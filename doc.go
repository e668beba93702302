// Package qfqrl implements a Quick Fair Queueing with Rate Limitation
// (QFQ-RL) packet scheduler.
//
// The exported surface is deliberately thin: Scheduler ties together a
// classifier, a per-class sub-queue, the QFQ state engine (internal/engine),
// the rate-limiting virtual clock (internal/vclock), and a multi-producer
// activation front end (internal/activation). Pair it with a spinner.Spinner
// to get a dedicated single-consumer dequeue loop, or call Scheduler.Dequeue
// directly from a single-threaded embedding.
package qfqrl
