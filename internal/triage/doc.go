// Package triage implements the intake classification and routing engine:
// taxonomy keyword matching, severity scoring, and threshold-based routing
// with override semantics, evaluated deterministically against an immutable
// configuration snapshot. It also defines the Service (decision IDs, LLM
// category fallback, escalation notify, reload) built on top of the engine.
package triage
