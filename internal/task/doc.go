// Package task schedules asynchronous operations on a bounded worker pool.
//
// Operations may declare other operations as dependencies; an operation does
// not start until every dependency has reached a terminal state. Each
// operation runs at most once, can be cancelled, and hands its completion
// continuation to a Dispatcher once it is done.
package task
