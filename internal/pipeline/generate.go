package pipeline

import (
	"context"
	"fmt"
)

// casualApology replaces the answer when casual generation fails. Casual
// chat never surfaces internal errors to the user.
const casualApology = "Sorry, I'm having trouble responding right now. Please try again in a moment."

// augment assembles the final generation prompt from the conversation
// context and the combined evidence. Deterministic, no collaborator
// calls.
func (p *Pipeline) augment(s *state) {
	s.prompt = augmentedPrompt(s.req, s.combined)
}

// generateCasual answers small talk from conversation context alone.
func (p *Pipeline) generateCasual(ctx context.Context, s *state) {
	answer, err := p.gen.Generate(ctx, casualPrompt(s.req), s.temperature)
	if err != nil {
		s.recordFailure(ErrGeneration, err)
		s.finalAnswer = casualApology
		return
	}
	s.finalAnswer = answer
}

// generateMemory phrases the answer found in the conversation history.
// Unlike the casual path, a failure here is a real error: the user asked
// a factual question and got nothing.
func (p *Pipeline) generateMemory(ctx context.Context, s *state) {
	answer, err := p.gen.Generate(ctx, memoryPrompt(s.req, s.memoryAnswer), s.temperature)
	if err != nil {
		s.recordFailure(ErrGeneration, err)
		s.status = StatusError
		s.finalAnswer = fmt.Sprintf("Sorry, I encountered an error: %v", err)
		return
	}
	s.finalAnswer = answer
}

// generateAnswer runs the assembled retrieval prompt.
func (p *Pipeline) generateAnswer(ctx context.Context, s *state) {
	answer, err := p.gen.Generate(ctx, s.prompt, s.temperature)
	if err != nil {
		s.recordFailure(ErrGeneration, err)
		s.status = StatusError
		s.finalAnswer = fmt.Sprintf("Sorry, I encountered an error: %v", err)
		return
	}
	s.finalAnswer = answer
}
