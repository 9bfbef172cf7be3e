// Package api provides the HTTP surface: thin chi handlers dispatching to
// the core services, with trace-ID context and learner-ID authorization
// applied as middleware. Handlers decode, delegate, and encode; every
// decision lives below them.
package api
