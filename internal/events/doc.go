// Package events provides types and interfaces for decoupled background
// task requests. The turn pipeline emits an event when a learner refresh
// becomes due instead of constructing the task itself, which keeps the
// service layer free of task-runner dependencies.
//
// The primary components are:
// - TaskRequestEvent: a request to create a background task
// - EventHandler: interface for components that handle events
// - EventEmitter: interface for components that emit events
package events
