package compliance

import "mercator-hq/themis/pkg/governance"

// StandardCMMI is the process-maturity standard name.
const StandardCMMI = "cmmi"

// NewCMMIValidator returns the CMMI process-maturity validator. It covers
// the four process areas checked for Level 3: requirements management,
// project planning, configuration management and quality assurance.
func NewCMMIValidator() Validator {
	return &controlValidator{
		standard:       StandardCMMI,
		compliantScore: 80,
		kinds: map[governance.OperationKind]bool{
			governance.OpProjectConfigChange: true,
			governance.OpWorkItemTransition:  true,
			governance.OpPullRequest:         true,
		},
		controls: []control{
			{
				ID:        "REQM",
				Name:      "Requirements Management",
				Attribute: "requirements_traceability",
				Severity:  "high",
				Weight:    15,
				Detail:    "requirements must be traceable throughout development",
			},
			{
				ID:        "PP",
				Name:      "Project Planning",
				Attribute: "project_plan",
				Severity:  "high",
				Weight:    15,
				Detail:    "project must have documented planning",
			},
			{
				ID:        "CM",
				Name:      "Configuration Management",
				Attribute: "version_control",
				Severity:  "medium",
				Weight:    10,
				Detail:    "all artifacts must be under version control",
			},
			{
				ID:        "PPQA",
				Name:      "Process and Product Quality Assurance",
				Attribute: "quality_assurance",
				Severity:  "medium",
				Weight:    10,
				Detail:    "quality assurance processes must be established",
			},
		},
	}
}
