// Package prompt builds the provider prompts for collection email drafts.
package prompt

import (
	"github.com/boddenberg/ar-collections-go/internal/domain"

	"github.com/osteele/liquid"
	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultTone is used for segments without a dedicated guide.
const DefaultTone = "professional and balanced"

var toneGuide = map[string]string{
	domain.SegmentEnterprise: "formal and professional - they expect corporate-level communication",
	domain.SegmentSMB:        "direct and solution-focused - they appreciate brevity and clear next steps",
	domain.SegmentStartup:    "empathetic and collaborative - acknowledge cash flow challenges while securing payment",
}

// ToneFor returns the tone guidance for a customer segment. Matching is exact.
func ToneFor(segment string) string {
	if tone, ok := toneGuide[segment]; ok {
		return tone
	}
	return DefaultTone
}

const systemTemplate = `You are an expert AR collections analyst. Generate professional collection emails
that maintain customer relationships while securing payment.

CRITICAL: Adapt tone based on customer segment.
For {{ segment }} customers: {{ tone }}

Always output valid JSON with these fields: subject, body, tone, tone_rationale.`

const taskTemplate = `Generate a collection email for:

Customer: {{ customer_name }}
Segment: {{ segment }}
Amount Due: {{ amount_due | usd }}
Days Overdue: {{ days_overdue }}

Return ONLY a JSON object with these exact fields:
- subject: Email subject line (adapt to segment)
- body: Full email body (150-200 words, tone adapted to {{ segment }})
- tone: One word describing tone used
- tone_rationale: Brief explanation WHY this tone fits {{ segment }} segment

Example format:
{"subject": "...", "body": "...", "tone": "...", "tone_rationale": "..."}`

// Renderer holds the compiled prompt templates. Safe for concurrent use.
type Renderer struct {
	system *liquid.Template
	task   *liquid.Template
}

// NewRenderer compiles the prompt templates.
func NewRenderer() (*Renderer, error) {
	engine := liquid.NewEngine()

	// {{ amount | usd }} -> $1,234.56
	printer := message.NewPrinter(language.English)
	engine.RegisterFilter("usd", func(v float64) string {
		return printer.Sprintf("$%.2f", v)
	})

	system, err := engine.ParseString(systemTemplate)
	if err != nil {
		return nil, eris.Wrap(err, "prompt: parse system template")
	}
	task, err := engine.ParseString(taskTemplate)
	if err != nil {
		return nil, eris.Wrap(err, "prompt: parse task template")
	}

	return &Renderer{system: system, task: task}, nil
}

// Render produces the system and user prompts for a draft request.
func (r *Renderer) Render(req *domain.DraftRequest) (*domain.GenerationRequest, error) {
	bindings := map[string]any{
		"customer_name": req.CustomerName,
		"segment":       req.Segment,
		"tone":          ToneFor(req.Segment),
		"amount_due":    req.AmountDue,
		"days_overdue":  req.DaysOverdue,
	}

	system, err := r.system.RenderString(bindings)
	if err != nil {
		return nil, eris.Wrap(err, "prompt: render system template")
	}
	task, err := r.task.RenderString(bindings)
	if err != nil {
		return nil, eris.Wrap(err, "prompt: render task template")
	}

	return &domain.GenerationRequest{
		System:   system,
		Prompt:   task,
		JSONMode: true,
	}, nil
}
