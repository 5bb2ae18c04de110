package compliance

import "mercator-hq/themis/pkg/governance"

// StandardSOX is the financial-controls standard name.
const StandardSOX = "sox"

// NewSOXValidator returns the SOX financial-controls validator: §302
// management certification, §404 internal controls and the general
// audit-trail requirement.
func NewSOXValidator() Validator {
	return &controlValidator{
		standard:       StandardSOX,
		compliantScore: 75,
		kinds: map[governance.OperationKind]bool{
			governance.OpProjectConfigChange: true,
			governance.OpPipelineRun:         true,
			governance.OpArtifactPublish:     true,
		},
		controls: []control{
			{
				ID:        "302",
				Name:      "Management Assessment",
				Attribute: "management_certification",
				Severity:  "high",
				Weight:    25,
				Detail:    "management must certify financial reporting controls",
			},
			{
				ID:        "404",
				Name:      "Internal Controls",
				Attribute: "internal_controls",
				Severity:  "high",
				Weight:    25,
				Detail:    "internal controls over financial reporting required",
			},
			{
				ID:        "AUDIT-TRAIL",
				Name:      "Audit Trail",
				Attribute: "audit_trail",
				Severity:  "medium",
				Weight:    15,
				Detail:    "complete audit trail of changes required",
			},
		},
	}
}
