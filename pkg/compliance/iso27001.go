package compliance

import "mercator-hq/themis/pkg/governance"

// StandardISO27001 is the security-management standard name.
const StandardISO27001 = "iso27001"

// NewISO27001Validator returns the ISO 27001 security-management
// validator: A.5.1.1 security policy, A.9 access control and A.16
// incident management.
func NewISO27001Validator() Validator {
	return &controlValidator{
		standard:       StandardISO27001,
		compliantScore: 75,
		kinds: map[governance.OperationKind]bool{
			governance.OpProjectConfigChange: true,
			governance.OpPipelineRun:         true,
			governance.OpPullRequest:         true,
			governance.OpArtifactPublish:     true,
		},
		controls: []control{
			{
				ID:        "A.5.1.1",
				Name:      "Information Security Policy",
				Attribute: "security_policy",
				Severity:  "high",
				Weight:    20,
				Detail:    "information security policy must be established",
			},
			{
				ID:        "A.9",
				Name:      "Access Control",
				Attribute: "access_control",
				Severity:  "high",
				Weight:    20,
				Detail:    "access control measures must be implemented",
			},
			{
				ID:        "A.16",
				Name:      "Incident Management",
				Attribute: "incident_management",
				Severity:  "medium",
				Weight:    15,
				Detail:    "security incident management procedures required",
			},
		},
	}
}
