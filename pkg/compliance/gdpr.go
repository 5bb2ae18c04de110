package compliance

import "mercator-hq/themis/pkg/governance"

// StandardGDPR is the data-protection standard name.
const StandardGDPR = "gdpr"

// NewGDPRValidator returns the GDPR data-protection validator: Art. 25
// privacy by design, Art. 12-23 data subject rights and Art. 33 breach
// notification.
func NewGDPRValidator() Validator {
	return &controlValidator{
		standard:       StandardGDPR,
		compliantScore: 80,
		kinds: map[governance.OperationKind]bool{
			governance.OpProjectConfigChange: true,
			governance.OpPullRequest:         true,
			governance.OpArtifactPublish:     true,
		},
		controls: []control{
			{
				ID:        "ART-25",
				Name:      "Data Protection by Design",
				Attribute: "privacy_by_design",
				Severity:  "high",
				Weight:    20,
				Detail:    "privacy by design principles must be implemented",
			},
			{
				ID:        "ART-12-23",
				Name:      "Data Subject Rights",
				Attribute: "data_subject_rights",
				Severity:  "high",
				Weight:    20,
				Detail:    "data subject rights mechanisms required",
			},
			{
				ID:        "ART-33",
				Name:      "Data Breach Notification",
				Attribute: "breach_notification",
				Severity:  "medium",
				Weight:    15,
				Detail:    "data breach notification procedures required",
			},
		},
	}
}
