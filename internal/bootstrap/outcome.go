package bootstrap

import (
	"fmt"
	"io"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"

	domain "meridian/internal/domain/analysis"
)

// AnalysisOutcome is the settled request returned by Container.Analyze
type AnalysisOutcome struct {
	Request *domain.AnalysisRequest
}

// Confidence returns the aggregated confidence, 0 when the request never aggregated
func (o *AnalysisOutcome) Confidence() float64 {
	if o.Request == nil || o.Request.Confidence == nil {
		return 0
	}
	return o.Request.Confidence.Value
}

// Escalated reports whether the aggregated confidence fell below the threshold
func (o *AnalysisOutcome) Escalated() bool {
	return o.Request != nil && o.Request.Status == domain.StatusEscalated
}

// Render writes a plain-text summary: status, confidence, per-specialist outcome and the report
func (o *AnalysisOutcome) Render(w io.Writer) error {
	req := o.Request
	if req == nil {
		_, err := fmt.Fprintln(w, "no analysis")
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Request:    %s\n", req.ID)
	fmt.Fprintf(&b, "Status:     %s\n", req.Status)
	fmt.Fprintf(&b, "Confidence: %.2f\n", o.Confidence())
	if req.Confidence != nil && req.Confidence.Justification != "" {
		fmt.Fprintf(&b, "            %s\n", req.Confidence.Justification)
	}

	if len(req.Assignments) > 0 {
		b.WriteString("\nSpecialists:\n")
		for _, a := range req.Assignments {
			fmt.Fprintf(&b, "  %-14s %-11s", a.AgentType, a.Status)
			if a.Error != "" {
				fmt.Fprintf(&b, " %s", a.Error)
			}
			b.WriteString("\n")
		}
	}

	if req.Report != "" {
		b.WriteString("\n")
		b.WriteString(req.Report)
		if !strings.HasSuffix(req.Report, "\n") {
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// parsePriority maps free text onto a priority, falling back to normal
func parsePriority(s string) domain.Priority {
	p := domain.Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return domain.PriorityNormal
	}
	return p
}

func (c *Container) pgDB() *sqlx.DB {
	if c.PG == nil {
		return nil
	}
	return c.PG.DB()
}

func (c *Container) chConn() driver.Conn {
	if c.CH == nil {
		return nil
	}
	return c.CH.Conn()
}
