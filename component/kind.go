package component

// Kind is the role a node plays in the tree.
type Kind uint8

const (
	// KindComponent is a structural node that groups other nodes
	KindComponent Kind = iota
	// KindInput is a signal fed by an internal output
	KindInput
	// KindOutput is a signal that drives internal inputs
	KindOutput
	// KindPhysicalInput is a signal fed from outside the model (hardware or observer)
	KindPhysicalInput
	// KindPhysicalOutput is a signal presented to the outside world
	KindPhysicalOutput
	// KindParameter is an externally tunable signal
	KindParameter
)

var kindNames = [...]string{
	KindComponent:      "Component",
	KindInput:          "Input",
	KindOutput:         "Output",
	KindPhysicalInput:  "PhysicalInput",
	KindPhysicalOutput: "PhysicalOutput",
	KindParameter:      "Parameter",
}

// String returns the role name used in snapshots
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Plural returns the snapshot group key for children of this kind
func (k Kind) Plural() string {
	return k.String() + "s"
}

// IsSignal reports whether nodes of this kind carry a value
func (k Kind) IsSignal() bool {
	return k != KindComponent && int(k) < len(kindNames)
}

// IsOutputRole reports whether the kind may drive bindings
func (k Kind) IsOutputRole() bool {
	return k == KindOutput || k == KindPhysicalOutput
}

// IsInputRole reports whether the kind may receive bindings
func (k Kind) IsInputRole() bool {
	return k == KindInput || k == KindPhysicalInput
}

// IsExternallyWritable reports whether observers may set the value
func (k Kind) IsExternallyWritable() bool {
	return k == KindPhysicalInput || k == KindPhysicalOutput || k == KindParameter
}
