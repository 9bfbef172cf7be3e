// Package gemini implements the llm.Coach interface using Google's Gemini
// API. It renders embedded prompt templates, makes the model calls with
// retry for transient failures, and parses the JSON responses into the llm
// contract types.
package gemini
