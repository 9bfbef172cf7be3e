// Package task manages background job queuing, processing, and lifecycle.
// Its single job type today is the learner refresh: rewriting the rolling
// learner summary and recurring error patterns after every tenth graded
// turn. Tasks are persisted so they survive restarts and are recovered on
// startup.
package task
