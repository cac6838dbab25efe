package joydoc

// SchemaVersion tags the compiled JSON Schema artifact.
const SchemaVersion = "1.0.0"

// ValidateSchema checks a nested-collection schema map in one flat pass over
// its nodes in key order. Every node needs tableColumns, an array of columns
// resolved by their type. children entries are only type-checked and the map
// is never walked as a graph, so dangling ids and cycles are accepted. A map
// without exactly one root node yields a warning.
func (v *Validator) ValidateSchema(schema any) *ValidationResult {
	return v.validateRoot("schema", schema, entities.schemaMapType)
}

// ValidateSchema validates a schema map with the default validator.
func ValidateSchema(schema any) *ValidationResult {
	return defaultValidator.ValidateSchema(schema)
}
