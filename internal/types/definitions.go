// internal/types/definitions.go
package types

/*
 * Wire-format policy documents.
 *
 * PolicyDefinition is the stored/authored representation of a policy: YAML
 * bundles on disk and JSON documents in policy_versions rows both decode into
 * it. The compiler validates these documents against the closed enums and
 * builds the indexed in-memory representation the engine evaluates; nothing
 * downstream of the compiler ever sees a raw definition.
 *
 * Condition trees use a single ConditionNode shape for both groups and
 * leaves: a node with children is a group (operator and/or), a node without
 * is a leaf (field/op/value). The compiler converts this loose shape into the
 * engine's tagged union and rejects anything ambiguous.
 */

// ScopeRef pins a policy definition to the resource slice it governs.
// Fields beyond the scope type's needs are ignored.
type ScopeRef struct {
	Module        string `yaml:"module,omitempty" json:"module,omitempty"`
	EntityType    string `yaml:"entity_type,omitempty" json:"entityType,omitempty"`
	EntityVersion string `yaml:"entity_version,omitempty" json:"entityVersion,omitempty"`
	RecordID      string `yaml:"record_id,omitempty" json:"recordId,omitempty"`
}

// PolicyDefinition is one authored policy document.
type PolicyDefinition struct {
	ID        string           `yaml:"id" json:"id"`
	TenantID  string           `yaml:"tenant" json:"tenantId"`
	Name      string           `yaml:"name" json:"name"`
	VersionID string           `yaml:"version" json:"versionId"`
	ScopeType ScopeType        `yaml:"scope" json:"scopeType"`
	ScopeRef  ScopeRef         `yaml:"scope_ref" json:"scopeRef"`
	Rules     []RuleDefinition `yaml:"rules" json:"rules"`
}

// RuleDefinition is one authored rule within a policy document.
type RuleDefinition struct {
	ID          string                 `yaml:"id" json:"id"`
	Effect      Effect                 `yaml:"effect" json:"effect"`
	Priority    int                    `yaml:"priority" json:"priority"`
	SubjectType SubjectType            `yaml:"subject_type" json:"subjectType"`
	SubjectKey  string                 `yaml:"subject_key" json:"subjectKey"`
	Operations  []string               `yaml:"operations" json:"operations"`
	Condition   *ConditionNode         `yaml:"condition,omitempty" json:"condition,omitempty"`
	Obligations []ObligationDefinition `yaml:"obligations,omitempty" json:"obligations,omitempty"`
}

// ConditionNode is the loose wire shape of a condition tree node.
// Group nodes carry Operator ("and"|"or") and Children; leaf nodes carry
// Field, Op and Value. IsGroup disambiguates.
type ConditionNode struct {
	Operator string          `yaml:"operator,omitempty" json:"operator,omitempty"`
	Children []ConditionNode `yaml:"children,omitempty" json:"children,omitempty"`

	Field string `yaml:"field,omitempty" json:"field,omitempty"`
	Op    string `yaml:"op,omitempty" json:"op,omitempty"`
	Value any    `yaml:"value,omitempty" json:"value,omitempty"`
}

// IsGroup reports whether the node is a group rather than a leaf comparison.
func (n ConditionNode) IsGroup() bool {
	return len(n.Children) > 0 || n.Operator != ""
}

// ObligationDefinition is one authored enforcement side-instruction.
type ObligationDefinition struct {
	Type   string         `yaml:"type" json:"type"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}
