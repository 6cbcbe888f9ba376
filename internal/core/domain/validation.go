package domain

// Severity ranks a validation violation.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Violation is one defect found by an invariant validator.
type Violation struct {
	Code       string   `json:"code"`
	Severity   Severity `json:"severity"`
	EntityType string   `json:"entityType"`
	EntityID   string   `json:"entityID"`
	Message    string   `json:"message"`
}

// ValidationReport collects every violation found in a single validator run
// rather than stopping at the first.
type ValidationReport struct {
	Validator  string      `json:"validator"`
	Violations []Violation `json:"violations"`
}

// Add appends a violation to the report.
func (r *ValidationReport) Add(code string, sev Severity, entityType, entityID, message string) {
	r.Violations = append(r.Violations, Violation{
		Code:       code,
		Severity:   sev,
		EntityType: entityType,
		EntityID:   entityID,
		Message:    message,
	})
}

// Valid reports whether the run found no error-severity violations.
func (r *ValidationReport) Valid() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			return false
		}
	}
	return true
}
