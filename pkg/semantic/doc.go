// Package semantic is the boundary to the external semantic-analysis service
// that gates use when a policy question needs natural-language judgment.
//
// The engine treats the service as a black box:
//
//	analyze(excerpt, question) -> Finding{Verdict, Confidence}
//
// The service may be slow, non-deterministic, or unavailable. Callers always
// supply a deadline through the context; any error is surfaced to the gate,
// which downgrades it to a Warning result rather than a policy failure.
//
// # Components
//
//   - Client: HTTP/JSON client with bounded retries and per-call timeout
//   - CachedAnalyzer: LRU cache in front of any Analyzer so that repeated
//     questions within a process (e.g. successive synthesis iterations) get the
//     same answer
//   - AnalyzerFunc: adapter for tests and in-process analyzers
package semantic
