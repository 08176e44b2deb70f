package generator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Generator turns the user's message text into a reply. Everything
// above this interface (orchestration, quota, persistence) is agnostic
// to what produces the text, so a real inference backend can be swapped
// in behind the same signature.
type Generator interface {
	Generate(ctx context.Context, userMessage string) (string, error)
}

var templates = []string{
	"I understand your question about %q. As the Ravian QuantumAI agent, I can help you with advanced analytics and business insights.",
	"Interesting question! Based on %q, I can suggest some strategies using our quantum processing technology.",
	"I'll analyze %q with our advanced algorithms. Our platform offers tailored solutions for every business need.",
	"Thank you for your question about %q. Our AI is designed to provide accurate, contextually relevant answers.",
	"Regarding %q, our RAG technology enables deep analysis based on your specific knowledge base.",
}

// TemplateGenerator picks a canned reply that embeds the user text
// verbatim. It stands in for a real model and can simulate inference
// latency.
type TemplateGenerator struct {
	delay time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewTemplateGenerator(delay time.Duration) *TemplateGenerator {
	return &TemplateGenerator{
		delay: delay,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *TemplateGenerator) Generate(ctx context.Context, userMessage string) (string, error) {
	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	g.mu.Lock()
	template := templates[g.rng.Intn(len(templates))]
	g.mu.Unlock()

	return fmt.Sprintf(template, userMessage), nil
}
