package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/triageops/controlplane/internal/model"
)

// SafetyConfig configures the SafetyValidator. Defaults mirror
// original_source/crates/operator/src/agent/safety.rs's SafetyConfig::default.
type SafetyConfig struct {
	ApprovalRequiredVerbs map[string]bool
	DangerousPatterns     []*regexp.Regexp
	MaxCommandLength      int
	AllowDestructive      bool
}

func DefaultSafetyConfig() SafetyConfig {
	verbs := map[string]bool{}
	for _, v := range []string{"delete", "scale", "patch", "replace", "drain", "cordon"} {
		verbs[v] = true
	}
	return SafetyConfig{
		ApprovalRequiredVerbs: verbs,
		DangerousPatterns: []*regexp.Regexp{
			regexp.MustCompile(`rm\s+-rf`),
			regexp.MustCompile(`kubectl\s+delete\s+namespace`),
			regexp.MustCompile(`kubectl\s+delete\s+--all`),
			regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;`), // fork bomb
			regexp.MustCompile(`dd\s+if=/dev/(zero|random)\s+of=/dev/`),
		},
		MaxCommandLength: 1000,
		AllowDestructive: false,
	}
}

// SafetyValidator gates which tool commands an agent may run unattended,
// classifies risk, and decides which commands need human approval before
// execution. Grounded on original_source/crates/operator/src/agent/safety.rs.
type SafetyValidator struct {
	cfg SafetyConfig
}

func NewSafetyValidator(cfg SafetyConfig) *SafetyValidator {
	return &SafetyValidator{cfg: cfg}
}

// Validate rejects a command outright: too long, matching a dangerous
// pattern, or a destructive verb when AllowDestructive is false.
func (v *SafetyValidator) Validate(command string) error {
	if len(command) > v.cfg.MaxCommandLength {
		return fmt.Errorf("command exceeds max length %d", v.cfg.MaxCommandLength)
	}
	for _, p := range v.cfg.DangerousPatterns {
		if p.MatchString(command) {
			return fmt.Errorf("command matches dangerous pattern %q", p.String())
		}
	}
	if !v.cfg.AllowDestructive && v.IsDestructive(command) {
		return fmt.Errorf("destructive command rejected: %s", command)
	}
	return nil
}

// IsDestructive reports whether a command's first verb after the tool
// name is in the approval-required verb set.
func (v *SafetyValidator) IsDestructive(command string) bool {
	verb := firstVerb(command)
	return v.cfg.ApprovalRequiredVerbs[verb]
}

// RequiresApproval reports whether executing this command needs a human
// approval before the tool runs, even when AllowDestructive is true.
func (v *SafetyValidator) RequiresApproval(command string) bool {
	return v.IsDestructive(command)
}

// ClassifyRisk assigns a RiskLevel to a command for surfacing to an
// approver and for metrics labeling.
func (v *SafetyValidator) ClassifyRisk(command string) model.RiskLevel {
	if v.IsDestructive(command) {
		return model.RiskHigh
	}
	verb := firstVerb(command)
	switch verb {
	case "get", "describe", "logs", "top", "events":
		return model.RiskLow
	default:
		return model.RiskMedium
	}
}

// firstVerb returns the verb token of a "<tool> <verb> ..." command, e.g.
// "kubectl delete pod x" -> "delete".
func firstVerb(command string) string {
	fields := strings.Fields(command)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}
