// Package pipeline runs the content stages in a fixed order.
//
// Each stage resolves its prompt template against the keys written by earlier
// stages, runs the model/tool loop with its own tool allowlist and writes one
// new key. The run's lifecycle is a small phase machine:
//
//	NOT_STARTED → RUNNING_STAGE_1 → … → RUNNING_STAGE_n → COMPLETED
//	                     └──────────────┴──────→ FAILED
package pipeline
