package types

// Capability is a 64-bit bitmask of named agent capabilities. Bit order is
// fixed: it is part of the binary account layout and shared with off-chain
// readers.
type Capability uint64

const (
	CapCompute Capability = 1 << iota
	CapInference
	CapStorage
	CapNetwork
	CapSensor
	CapActuator
	CapCoordinator
	CapArbiter
	CapValidator
	CapAggregator
)

var capabilityNames = []struct {
	bit  Capability
	name string
}{
	{CapCompute, "Compute"},
	{CapInference, "Inference"},
	{CapStorage, "Storage"},
	{CapNetwork, "Network"},
	{CapSensor, "Sensor"},
	{CapActuator, "Actuator"},
	{CapCoordinator, "Coordinator"},
	{CapArbiter, "Arbiter"},
	{CapValidator, "Validator"},
	{CapAggregator, "Aggregator"},
}

// HasAll reports whether every bit in required is set in c.
func (c Capability) HasAll(required Capability) bool {
	return c&required == required
}

// Names returns the human-readable names of all set capability bits.
func (c Capability) Names() []string {
	names := make([]string, 0, len(capabilityNames))
	for _, entry := range capabilityNames {
		if c&entry.bit != 0 {
			names = append(names, entry.name)
		}
	}
	return names
}
