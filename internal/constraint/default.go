package constraint

import "github.com/ppiankov/sentinel/internal/model"

// Constraint ids of the built-in set.
const (
	NoViolence         = "no-violence"
	NoAutonomousAction = "no-autonomous-action"
	NoSelfExpansion    = "no-self-expansion"
	PrivacyProtection  = "privacy-protection"
	RuleOfLaw          = "rule-of-law"
	HumanAutonomy      = "human-autonomy"
	MinimalCollateral  = "minimal-collateral"
)

// DefaultConstraints is the built-in constraint table, in check order.
// Treat as read-only; Default() hands out an independent copy.
var DefaultConstraints = []Constraint{
	{
		ID:          NoViolence,
		Name:        "No Violence",
		Description: "Never recommend, plan or facilitate physical violence against any person.",
		Level:       model.LevelCritical,
		TriggerPhrases: []string{
			"kill", "murder", "attack", "hurt", "harm", "weapon", "bomb",
			"shoot", "stab", "poison", "torture", "assault", "beat",
		},
	},
	{
		ID:          NoAutonomousAction,
		Name:        "No Autonomous Action",
		Description: "Never act in the world without explicit human approval.",
		Level:       model.LevelCritical,
		TriggerPhrases: []string{
			"automatically execute", "auto-execute", "without approval",
			"without human", "autonomous", "bypass approval",
			"act independently", "self-execute",
		},
	},
	{
		ID:          NoSelfExpansion,
		Name:        "No Self-Expansion",
		Description: "Never acquire resources, capabilities or access beyond the assigned task.",
		Level:       model.LevelCritical,
		TriggerPhrases: []string{
			"self-replicate", "replicate itself", "copy itself",
			"acquire resources", "expand capabilities", "modify own code",
			"escalate privileges", "gain access",
		},
	},
	{
		ID:          PrivacyProtection,
		Name:        "Privacy Protection",
		Description: "Do not track, surveil or expose personal information unless a specific, imminent threat to life justifies it.",
		Level:       model.LevelHigh,
		TriggerPhrases: []string{
			"track", "surveil", "spy", "wiretap", "location",
			"personal data", "monitor communications", "read messages",
			"intercept", "access private",
		},
		Exceptions: []string{"imminent threat", "specific harm", "life-threatening"},
	},
	{
		ID:          RuleOfLaw,
		Name:        "Rule of Law",
		Description: "Operate within the law; no hacking, theft, coercion or vigilante action.",
		Level:       model.LevelHigh,
		TriggerPhrases: []string{
			"illegal", "break the law", "hack", "steal", "forge", "bribe",
			"blackmail", "unauthorized access", "vigilante", "break into",
		},
		Exceptions: []string{"imminent death", "imminent threat", "life-threatening"},
	},
	{
		ID:          HumanAutonomy,
		Name:        "Human Autonomy",
		Description: "Respect the right of people to make their own decisions.",
		Level:       model.LevelHigh,
		TriggerPhrases: []string{
			"manipulate", "coerce", "deceive", "brainwash", "force them",
			"override their", "without consent", "against their will",
		},
	},
	{
		ID:          MinimalCollateral,
		Name:        "Minimal Collateral",
		Description: "Prefer responses that affect as few uninvolved people as possible.",
		Level:       model.LevelMedium,
		TriggerPhrases: []string{
			"mass", "everyone", "all users", "widespread",
			"indiscriminate", "shut down", "blanket",
		},
	},
}

// recommendations maps constraint ids to remediation advice used in reports.
var recommendations = map[string]string{
	NoViolence:         "Remove any element that involves or enables physical harm; escalate to human responders instead.",
	NoAutonomousAction: "Route the action through an operator for explicit approval before anything is executed.",
	NoSelfExpansion:    "Restrict the action to the resources and access already granted for this task.",
	PrivacyProtection:  "Limit data collection to what a documented, specific threat requires, or obtain consent.",
	RuleOfLaw:          "Replace the action with a lawful alternative or refer the matter to the proper authorities.",
	HumanAutonomy:      "Inform and advise the people involved rather than deciding for them.",
	MinimalCollateral:  "Narrow the scope of the action to the people directly involved.",
}

const defaultRecommendation = "Review the action with a human operator before proceeding."

// Suggested alternatives, chosen by report priority.
const (
	alternativeViolence   = "Alert emergency services or trained human responders instead of taking direct action."
	alternativeAutonomous = "Submit the proposed action for human review and approval before execution."
	alternativePrivacy    = "Use only information that is already lawfully available, or ask the people involved for consent."
	alternativeMonitor    = "Continue monitoring the situation and gather more information before acting."
)
