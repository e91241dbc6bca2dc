package reactor

import (
	"fmt"
	"sort"
)

// Kind tags a reactor variant.
type Kind int

const (
	KindReactor Kind = iota
	KindConstPressureReactor
	KindIdealGasReactor
	KindIdealGasConstPressureReactor
	KindMoleReactor
	KindConstPressureMoleReactor
	KindIdealGasMoleReactor
	KindIdealGasConstPressureMoleReactor
	KindFlowReactor
	KindReservoir
)

var kindNames = map[Kind]string{
	KindReactor:                          "Reactor",
	KindConstPressureReactor:             "ConstPressureReactor",
	KindIdealGasReactor:                  "IdealGasReactor",
	KindIdealGasConstPressureReactor:     "IdealGasConstPressureReactor",
	KindMoleReactor:                      "MoleReactor",
	KindConstPressureMoleReactor:         "ConstPressureMoleReactor",
	KindIdealGasMoleReactor:              "IdealGasMoleReactor",
	KindIdealGasConstPressureMoleReactor: "IdealGasConstPressureMoleReactor",
	KindFlowReactor:                      "FlowReactor",
	KindReservoir:                        "Reservoir",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the names returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("reactor: unknown kind %q", s)
}

// Kinds lists every kind name in sorted order.
func Kinds() []string {
	out := make([]string, 0, len(kindNames))
	for _, n := range kindNames {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// formulation selects the governing equations of a GasReactor.
type formulation struct {
	pressureHeld bool
	temperature  bool
	moles        bool
}

var formulations = map[Kind]formulation{
	KindReactor:                          {},
	KindConstPressureReactor:             {pressureHeld: true},
	KindIdealGasReactor:                  {temperature: true},
	KindIdealGasConstPressureReactor:     {pressureHeld: true, temperature: true},
	KindMoleReactor:                      {moles: true},
	KindConstPressureMoleReactor:         {pressureHeld: true, moles: true},
	KindIdealGasMoleReactor:              {temperature: true, moles: true},
	KindIdealGasConstPressureMoleReactor: {pressureHeld: true, temperature: true, moles: true},
}
