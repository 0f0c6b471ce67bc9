package vehicle

// Validate is the required-field gate: one pass over the schema's required
// fields comparing each value to its sentinel. It returns a *ValidationError
// naming every field still at its default, or nil.
func (s *Schema) Validate(r *Record) error {
	if err := s.CheckRecord(r); err != nil {
		return err
	}
	var missing []string
	for i, f := range s.fields {
		if !f.Required {
			continue
		}
		if r.entries[i].Value.isSentinel(f.Role) {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
