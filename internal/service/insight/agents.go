package insight

import (
	"fmt"
	"strings"

	"github.com/kirinyoku/gamecafe/internal/domain"
)

type Agent string

const (
	AgentOwnerAssistant     Agent = "OWNER_ASSISTANT"
	AgentSmartPricing       Agent = "SMART_PRICING"
	AgentDeviceOptimization Agent = "DEVICE_OPTIMIZATION"
	AgentCustomerBehavior   Agent = "CUSTOMER_BEHAVIOR"
	AgentRiskFraud          Agent = "RISK_FRAUD"
)

type persona struct {
	system string
	task   string
}

var personas = map[Agent]persona{
	AgentOwnerAssistant: {
		system: "You assist gaming cafe owners. Answer questions about revenue, device utilization, " +
			"customer behavior and trends with concise, data-driven suggestions.",
	},
	AgentSmartPricing: {
		system: "You are a pricing analyst for gaming cafes. Use demand and usage patterns to suggest pricing.",
		task:   "Give three specific pricing recommendations with their expected revenue impact.",
	},
	AgentDeviceOptimization: {
		system: "You optimize device usage in gaming cafes, focusing on idle time and revenue per device.",
		task:   "Suggest three actionable steps to raise utilization and cut idle time.",
	},
	AgentCustomerBehavior: {
		system: "You analyse customer behavior in gaming cafes and suggest retention strategies.",
		task:   "Suggest strategies that increase retention and customer lifetime value.",
	},
	AgentRiskFraud: {
		system: "You review gaming cafe operations for suspicious patterns and revenue leaks.",
		task:   "Identify risks and suggest preventive measures.",
	},
}

// ParseAgent accepts any case. An empty name selects the owner assistant.
func ParseAgent(s string) (Agent, error) {
	if strings.TrimSpace(s) == "" {
		return AgentOwnerAssistant, nil
	}
	a := Agent(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := personas[a]; !ok {
		return "", domain.ValidationError{Field: "agent_type", Reason: fmt.Sprintf("unknown agent %q", s)}
	}
	return a, nil
}

func prompt(a Agent, c Context, message string) (system, user string) {
	p := personas[a]

	var b strings.Builder
	b.WriteString("Current context:\n")
	b.WriteString(c.render())
	if p.task != "" {
		b.WriteString("\n")
		b.WriteString(p.task)
		b.WriteString("\n")
	}
	if message != "" {
		b.WriteString("\nOwner question: ")
		b.WriteString(message)
	}

	return p.system, b.String()
}
