// Package mocks provides shared mock implementations for testing.
//
// # Usage
//
//	import "scicontent/internal/mocks"
//
//	func TestSomething(t *testing.T) {
//	    mockLLM := mocks.NewMockLLMClient()
//	    mockLLM.RespondWith("test response")
//	    // Use mockLLM in test...
//	}
//
// # Available Mocks
//
//   - MockLLMClient: scripted implementation of llm.LLMClient
package mocks
