// Package agent builds the model client used by the pipeline stages.
//
// The client is one of the provider implementations under internal/llmimpl
// (Gemini, Claude, OpenAI chat completions, Ollama), wrapped in a middleware
// chain that adds metrics, empty-response guidance, a circuit breaker,
// retry with exponential backoff and a per-request timeout.
//
// Subpackages:
//   - llm: request/response types, context helpers and the middleware chain.
//   - llmerrors: classified model errors.
//   - middleware: the middleware implementations.
//   - toolloop: the model/tool conversation loop each stage runs.
package agent
