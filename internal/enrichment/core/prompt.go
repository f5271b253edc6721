package core

import (
	"fmt"
	"strings"

	"github.com/joshsymonds/warlens/internal/enrichment"
)

const refreshNote = "Important: Generate a new response and do not return the previous suggestion, even if you have seen this before."

// BuildPrompt renders the analysis prompt for one finding.
func BuildPrompt(req enrichment.Request) string {
	var sb strings.Builder

	sb.WriteString("Analyze the following Well-Architected Review finding:\n\n")
	fmt.Fprintf(&sb, "Pillar: %s\n", req.Pillar)
	fmt.Fprintf(&sb, "Question: %s\n", req.Question)
	fmt.Fprintf(&sb, "Severity: %s\n", req.Severity)
	fmt.Fprintf(&sb, "Check Title: %s\n", req.CheckTitle)
	fmt.Fprintf(&sb, "Check Description: %s\n", req.CheckDescription)
	fmt.Fprintf(&sb, "Resource Type: %s\n\n", req.ResourceType)

	sb.WriteString("Based on this information, identify potential opportunities for DevOps consultants ")
	sb.WriteString("to provide Elastic Engineering services that could optimize cloud infrastructure, ")
	sb.WriteString("enhance automation, reduce costs, or improve security.\n")

	if req.Refresh {
		sb.WriteString(refreshNote)
		sb.WriteString("\n")
	}
	if info := strings.TrimSpace(req.AdditionalInfo); info != "" {
		fmt.Fprintf(&sb, "Additional information: %s\n", info)
	}

	return sb.String()
}
