package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// IncentiveType is the formula family a rebate uses.
// Values are distinct bit flags so they can be collected in an IncentiveSet.
type IncentiveType uint8

const (
	FixedRateRebate IncentiveType = 1 << iota
	AmountPerUom
	FixedCashAmount
)

// AllIncentives lists every known incentive kind in declaration order.
var AllIncentives = []IncentiveType{FixedRateRebate, AmountPerUom, FixedCashAmount}

var incentiveNames = map[IncentiveType]string{
	FixedRateRebate: "FixedRateRebate",
	AmountPerUom:    "AmountPerUom",
	FixedCashAmount: "FixedCashAmount",
}

// String returns the incentive name, or "Unknown(n)" for values outside the set.
func (t IncentiveType) String() string {
	if name, ok := incentiveNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint8(t))
}

// Valid reports whether t is one of the known incentive kinds.
func (t IncentiveType) Valid() bool {
	_, ok := incentiveNames[t]
	return ok
}

// ParseIncentiveType parses an incentive name, case-insensitively.
func ParseIncentiveType(s string) (IncentiveType, error) {
	for t, name := range incentiveNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown incentive type %q", s)
}

// MarshalJSON encodes the incentive by name.
func (t IncentiveType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot marshal incentive type %d", uint8(t))
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes an incentive from its name.
func (t *IncentiveType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("incentive type must be a string: %w", err)
	}
	parsed, err := ParseIncentiveType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IncentiveSet is the set of incentive kinds a product supports.
type IncentiveSet uint8

// NewIncentiveSet builds a set from the given kinds.
func NewIncentiveSet(kinds ...IncentiveType) IncentiveSet {
	var s IncentiveSet
	for _, k := range kinds {
		s |= IncentiveSet(k)
	}
	return s
}

// Supports reports whether k is in the set. The zero kind is never supported.
func (s IncentiveSet) Supports(k IncentiveType) bool {
	return k != 0 && IncentiveSet(k)&s == IncentiveSet(k)
}

// Kinds returns the known kinds contained in the set.
func (s IncentiveSet) Kinds() []IncentiveType {
	kinds := make([]IncentiveType, 0, len(AllIncentives))
	for _, k := range AllIncentives {
		if s.Supports(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func (s IncentiveSet) String() string {
	kinds := s.Kinds()
	if len(kinds) == 0 {
		return "None"
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, "|")
}

// MarshalJSON encodes the set as an array of incentive names.
func (s IncentiveSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Kinds())
}

// UnmarshalJSON decodes an array of incentive names.
func (s *IncentiveSet) UnmarshalJSON(data []byte) error {
	var kinds []IncentiveType
	if err := json.Unmarshal(data, &kinds); err != nil {
		return fmt.Errorf("supported incentives: %w", err)
	}
	*s = NewIncentiveSet(kinds...)
	return nil
}
