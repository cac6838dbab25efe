package joydoc

import "fmt"

// ConditionContract selects which reference attributes the conditions of a
// Logic block must carry.
type ConditionContract int

const (
	// FieldConditions reference a file, page and field.
	FieldConditions ConditionContract = iota
	// SchemaConditions reference a schema node and one of its columns.
	SchemaConditions
)

func (c ConditionContract) String() string {
	switch c {
	case FieldConditions:
		return "field"
	case SchemaConditions:
		return "schema"
	default:
		return fmt.Sprintf("ConditionContract(%d)", int(c))
	}
}

// ParseConditionContract maps "field" and "schema" to a ConditionContract.
func ParseConditionContract(s string) (ConditionContract, error) {
	switch s {
	case "", "field":
		return FieldConditions, nil
	case "schema":
		return SchemaConditions, nil
	default:
		return 0, fmt.Errorf("unknown condition contract %q", s)
	}
}

func (c ConditionContract) attrType() *AttrType {
	if c == SchemaConditions {
		return entities.schemaLogicType
	}
	return entities.logicType
}

// ValidateLogic checks a Logic block: action, eval and conditions must all be
// present, and every condition carries the reference attributes of contract
// plus its operator. Operators, actions and evaluation modes are open sets and
// references are not resolved.
func (v *Validator) ValidateLogic(logic any, contract ConditionContract) *ValidationResult {
	return v.validateRoot("logic", logic, contract.attrType())
}

// ValidateLogic validates a Logic block with the default validator.
func ValidateLogic(logic any, contract ConditionContract) *ValidationResult {
	return defaultValidator.ValidateLogic(logic, contract)
}
