package service

import (
	"fmt"
	"strings"

	"site_registry/internal/domain"
)

const detailsPrefix = "powerSourceDetails"

// detailPath is the dotted key of a power source field, e.g. powerSourceDetails.grid.voltage.
func detailPath(kind domain.PowerSourceKind, field string) string {
	return detailsPrefix + "." + kind.Key() + "." + field
}

// ValidatePowerSources checks the candidate values of every selected kind and
// returns all violations in selection order. Data for unselected or unknown
// kinds is ignored. An empty result means the values are valid.
func ValidatePowerSources(selected []domain.PowerSourceKind, values map[string]interface{}) []domain.Violation {
	var violations []domain.Violation
	seen := make(map[domain.PowerSourceKind]bool, len(selected))

	for _, kind := range selected {
		if seen[kind] {
			continue
		}
		seen[kind] = true

		switch kind {
		case domain.Grid, domain.Generator, domain.Battery, domain.Solar:
			violations = append(violations, validateKind(kind, values)...)
		case domain.Other:
			violations = append(violations, validateOther(values)...)
		}
	}

	return violations
}

func validateKind(kind domain.PowerSourceKind, values map[string]interface{}) []domain.Violation {
	var violations []domain.Violation

	for _, f := range kind.Fields() {
		path := detailPath(kind, f.Name)
		val, present := values[path]

		if !present || isBlank(val) {
			if f.Required {
				violations = append(violations, domain.NewViolation(domain.ErrMissingField, path,
					fmt.Sprintf("%s %s is required", kind, f.Label)))
			}
			continue
		}

		switch {
		case f.Numeric:
			if n, ok := toFloat(val); !ok || n <= 0 {
				violations = append(violations, domain.NewViolation(domain.ErrInvalidNumber, path,
					fmt.Sprintf("%s %s must be a positive number", kind, f.Label)))
			}
		case len(f.Enum) > 0:
			s, ok := val.(string)
			if !ok || !containsFold(f.Enum, s) {
				violations = append(violations, domain.NewViolation(domain.ErrInvalidEnum, path,
					fmt.Sprintf("%s %s must be one of: %s", kind, f.Label, strings.Join(f.Enum, ", "))))
			}
		}
	}

	return violations
}

// validateOther needs at least one of type, a positive capacity, or description.
func validateOther(values map[string]interface{}) []domain.Violation {
	var violations []domain.Violation

	typePath := detailPath(domain.Other, "type")
	capPath := detailPath(domain.Other, "capacity")
	descPath := detailPath(domain.Other, "description")

	_, hasType := values[typePath].(string)
	hasType = hasType && !isBlank(values[typePath])
	_, hasDesc := values[descPath].(string)
	hasDesc = hasDesc && !isBlank(values[descPath])

	hasCapacity := false
	if val, ok := values[capPath]; ok && !isBlank(val) {
		if n, ok := toFloat(val); ok && n > 0 {
			hasCapacity = true
		} else {
			violations = append(violations, domain.NewViolation(domain.ErrInvalidNumber, capPath,
				"Other capacity must be a positive number"))
		}
	}

	if !hasType && !hasCapacity && !hasDesc {
		violations = append(violations, domain.NewViolation(domain.ErrMissingField, typePath,
			"Other power source requires at least a type, capacity, or description"))
	}

	return violations
}

func containsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
