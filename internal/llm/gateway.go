package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbscribe/dbscribe/internal/metrics"
)

// ErrUnavailable signals that enrichment could not be produced: no provider
// is configured, the object type has no analysis template, or the provider
// call failed. Callers are expected to continue without the analysis.
var ErrUnavailable = errors.New("llm analysis unavailable")

// generator is the slice of Model the gateway depends on.
type generator interface {
	Generate(ctx context.Context, prompt string) (string, Usage, error)
	Cost(Usage) float64
}

var analysisPrompts = map[string]string{
	"table": `Analyze this SQL Server table structure and provide a clear, technical description:

%s

Please provide:
1. A brief overview of the table's purpose
2. Key structural features (primary key, important columns)
3. Relationships with other tables
4. Any performance considerations
`,
	"view": `Analyze this SQL Server view definition and provide a clear, technical description:

%s

Please provide:
1. A brief overview of the view's purpose
2. The main tables/views it references
3. Any important transformations or calculations
4. Usage considerations
`,
	"procedure": `Analyze this SQL Server stored procedure and provide a clear, technical description:

%s

Please provide:
1. A brief overview of the procedure's purpose
2. Description of input/output parameters
3. Key operations and logic flow
4. Important tables affected
5. Any performance considerations
`,
	"function": `Analyze this SQL Server function and provide a clear, technical description:

%s

Please provide:
1. A brief overview of the function's purpose
2. Description of parameters and return value
3. Key calculations or operations
4. Usage considerations
`,
}

// Gateway produces natural-language narratives for rendered documentation.
// A nil model makes every Analyze call return ErrUnavailable; the rest of
// the pipeline runs without enrichment.
type Gateway struct {
	model   generator
	metrics *metrics.Collector
}

// NewGateway creates an enrichment gateway. Pass a nil model to run
// without a configured provider.
func NewGateway(model *Model, collector *metrics.Collector) *Gateway {
	g := &Gateway{metrics: collector}
	if model != nil {
		g.model = model
	}
	return g
}

// newGatewayWith is used by tests to inject a fake generator.
func newGatewayWith(model generator, collector *metrics.Collector) *Gateway {
	return &Gateway{model: model, metrics: collector}
}

// Check verifies the backing provider responds to a minimal prompt.
func (g *Gateway) Check(ctx context.Context) error {
	if g.model == nil {
		return fmt.Errorf("%w: no provider configured", ErrUnavailable)
	}
	if _, _, err := g.model.Generate(ctx, "Reply with OK."); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Analyze generates a narrative for a rendered document. Transient provider
// errors are not retried; they surface once as ErrUnavailable and the
// caller decides whether to continue.
func (g *Gateway) Analyze(ctx context.Context, doc, objType string) (string, Usage, float64, error) {
	if g.model == nil {
		return "", Usage{}, 0, fmt.Errorf("%w: no provider configured", ErrUnavailable)
	}

	template, ok := analysisPrompts[objType]
	if !ok {
		return "", Usage{}, 0, fmt.Errorf("%w: unsupported object type %q", ErrUnavailable, objType)
	}

	start := time.Now()
	text, usage, err := g.model.Generate(ctx, fmt.Sprintf(template, doc))
	if err != nil {
		return "", Usage{}, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if g.metrics != nil {
		g.metrics.RecordLLMUsage(metrics.OpLLMAnalyze, time.Since(start),
			int64(usage.InputTokens), int64(usage.OutputTokens))
	}

	return text, usage, g.model.Cost(usage), nil
}
