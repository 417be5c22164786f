package reporting

import (
	"time"

	"github.com/ethereum-optimism/infra/test-agent/types"
)

// Payload is the envelope for every published report
type Payload struct {
	Kind        string    `json:"kind"`
	GeneratedAt time.Time `json:"generated_at"`
	Report      any       `json:"report"`
}

const (
	KindDiscovery = "discovery"
	KindExecution = "execution"
)

// NewDiscoveryPayload wraps a discovery report for publishing
func NewDiscoveryPayload(report *types.DiscoveryReport) Payload {
	return Payload{
		Kind:        KindDiscovery,
		GeneratedAt: time.Now().UTC(),
		Report:      report,
	}
}

// NewExecutionPayload wraps an execution report for publishing
func NewExecutionPayload(report *types.ExecutionReport) Payload {
	return Payload{
		Kind:        KindExecution,
		GeneratedAt: time.Now().UTC(),
		Report:      report,
	}
}
