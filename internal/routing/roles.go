// Package routing decides which expert model serves a request: it classifies
// request content, tracks per-expert failures with quarantine, substitutes
// backups for unhealthy experts, builds fan-out sets for quorum calls, and
// scores/merges multi-expert responses.
package routing

import "fmt"

// Role identifies one expert slot in the mixture. Every deployment binds each
// role to a concrete model identifier.
type Role string

const (
	RoleReasoning      Role = "reasoning"
	RoleFallback       Role = "fallback"
	RoleEnterprise     Role = "enterprise"
	RoleMathTool       Role = "math_tool"
	RoleCode           Role = "code"
	RoleCostCode       Role = "cost_code"
	RoleAggregator     Role = "aggregator"
	RoleVision         Role = "vision"
	RoleVisionThinking Role = "vision_thinking"
)

// Roles returns all expert roles in canonical order. This ordering is the
// catalog enumeration order used by selection and merging.
func Roles() []Role {
	return []Role{
		RoleReasoning,
		RoleFallback,
		RoleEnterprise,
		RoleMathTool,
		RoleCode,
		RoleCostCode,
		RoleAggregator,
		RoleVision,
		RoleVisionThinking,
	}
}

// ParseRole validates a role name from configuration.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown expert role %q", s)
}

// defaultBackups is the directed backup relation between roles, tried in
// listed order when the primary is quarantined.
var defaultBackups = map[Role][]Role{
	RoleReasoning:      {RoleEnterprise, RoleFallback},
	RoleFallback:       {RoleEnterprise},
	RoleEnterprise:     {RoleReasoning, RoleFallback},
	RoleMathTool:       {RoleAggregator, RoleEnterprise},
	RoleCode:           {RoleCostCode, RoleFallback},
	RoleCostCode:       {RoleFallback},
	RoleAggregator:     {RoleReasoning, RoleEnterprise},
	RoleVision:         {RoleVisionThinking, RoleFallback},
	RoleVisionThinking: {RoleVision, RoleFallback},
}
