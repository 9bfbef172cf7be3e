// Package service contains the application services that orchestrate the
// coaching workflows on top of the domain model and the store interfaces.
//
// TurnService drives the per-turn pipeline: guard checks, transcription,
// context assembly, a single grading call, atomic persistence, and reply
// delivery. ReviewService applies spaced-repetition outcomes, PlanService
// owns curriculum seeding and the study-plan view, StatsService derives
// score trends from recent grades, and LearnerService manages the single
// learner's profile and settings.
//
// Services hold narrow store interfaces rather than concrete
// implementations, return *ServiceError values that wrap the underlying
// cause, and never expose SQL or vendor details to their callers.
package service
