// Package simulator produces realistic error events for load testing the
// webhook and the triage pipeline.
package simulator

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/faultline/pkg/types"
)

// Template is one failure scenario.
type Template struct {
	Service   string
	Message   string
	ErrorType string
	Severity  string
}

// Templates are the scenarios the generator picks from, uniformly.
var Templates = []Template{
	{Service: "billing-api", Message: "Payment gateway timeout", ErrorType: "TimeoutError", Severity: "high"},
	{Service: "auth-service", Message: "User authentication failed", ErrorType: "AuthenticationError", Severity: "medium"},
	{Service: "inventory-service", Message: "Database connection reset", ErrorType: "ConnectionError", Severity: "high"},
	{Service: "frontend-app", Message: "Resource not found", ErrorType: "NotFoundError", Severity: "low"},
	{Service: "notification-service", Message: "Email delivery failed", ErrorType: "SMTPException", Severity: "medium"},
}

// timestampLayout is second precision UTC with a literal Z.
const timestampLayout = "2006-01-02T15:04:05Z"

// StackTrace renders a Python style traceback whose last line is
// "<errorType>: <message>", so every event of a template shares a fingerprint.
func StackTrace(errorType, message string) string {
	frames := []string{
		"File \"/app/src/main.py\", line 45, in process_request\n    return handler.handle(request)",
		"File \"/app/src/handler.py\", line 28, in handle\n    result = self.service.execute(data)",
		fmt.Sprintf("File \"/app/src/services/business_logic.py\", line 102, in execute\n    raise %s(\"%s\")", errorType, message),
	}

	var b strings.Builder
	b.WriteString("Traceback (most recent call last):\n")
	for _, frame := range frames {
		b.WriteString("  ")
		b.WriteString(frame)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s: %s", errorType, message)
	return b.String()
}

// Generator creates events. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator returns a generator seeded with seed; 0 seeds from the clock.
// With a fixed seed and clock the event sequence is reproducible.
func NewGenerator(seed int64, now func() time.Time) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
		now: now,
	}
}

// Next returns a new random event.
func (g *Generator) Next() types.RawErrorEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	tpl := Templates[g.rng.Intn(len(Templates))]
	env := types.ValidEnvironments[g.rng.Intn(len(types.ValidEnvironments))]

	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		id = uuid.New()
	}

	return types.RawErrorEvent{
		Service:     tpl.Service,
		Environment: env,
		Timestamp:   g.now().UTC().Format(timestampLayout),
		Level:       types.LevelError,
		Message:     tpl.Message,
		ErrorType:   tpl.ErrorType,
		Severity:    tpl.Severity,
		StackTrace:  StackTrace(tpl.ErrorType, tpl.Message),
		RequestID:   "req_" + id.String()[:8],
	}
}
