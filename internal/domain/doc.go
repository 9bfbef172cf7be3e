// Package domain contains the core entity types of the coaching system:
// the learner profile, conversation sessions and messages, grades, review
// items, daily prompts, and weekly summaries. Each type carries a
// constructor and a Validate method so that invariants are enforced at the
// boundary and internal code never re-validates shape.
package domain
