// Package rules holds the extraction rule configuration: the entity type
// registry, the rule-backed entity patterns and the ordered event pattern
// list. A Ruleset is loaded once at startup, validated and compiled there,
// and read-only afterwards. A malformed pattern is a fatal configuration
// error, never a per-request one.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultRules []byte

// TypeInfo describes a registered entity type for display purposes.
type TypeInfo struct {
	Name        string `yaml:"name"`
	Color       string `yaml:"color"`
	Description string `yaml:"description"`
}

// EntityRule is one compiled rule-backed entity pattern. Confidence is the
// declared specificity of the pattern, not a measured quantity.
type EntityRule struct {
	Type       string  `yaml:"type"`
	Name       string  `yaml:"name"`
	Pattern    string  `yaml:"pattern"`
	Confidence float64 `yaml:"confidence"`

	Regexp *regexp.Regexp `yaml:"-"`
}

// EventPattern is one compiled event pattern. Named capture groups become
// event attributes when ExtractAttributes is set. Index is the declaration
// position and is the final tie-break during span resolution.
type EventPattern struct {
	Type              string  `yaml:"type"`
	Name              string  `yaml:"name"`
	Pattern           string  `yaml:"pattern"`
	Confidence        float64 `yaml:"confidence"`
	ExtractAttributes bool    `yaml:"extract_attributes"`

	Index  int            `yaml:"-"`
	Regexp *regexp.Regexp `yaml:"-"`
	Groups []string       `yaml:"-"`
}

// Ruleset is the full validated configuration.
type Ruleset struct {
	EntityTypes   []TypeInfo        `yaml:"entity_types"`
	EntityRules   []EntityRule      `yaml:"entity_rules"`
	EventPatterns []EventPattern    `yaml:"event_patterns"`
	EventColors   map[string]string `yaml:"event_colors"`

	typesByName map[string]TypeInfo
}

// Default returns the embedded built-in rule set. The embedded file is part
// of the binary, so a failure here is a build defect and panics.
func Default() *Ruleset {
	rs, err := parse(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("embedded rule set invalid: %v", err))
	}
	return rs
}

// Load reads a rule set from path. Custom entity types and patterns in the
// file extend the built-ins; redefining a built-in type name is rejected.
func Load(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	custom, err := parse(data)
	if err != nil {
		return nil, err
	}
	return merge(Default(), custom)
}

func parse(data []byte) (*Ruleset, error) {
	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := rs.compile(); err != nil {
		return nil, err
	}
	return &rs, nil
}

func merge(base, custom *Ruleset) (*Ruleset, error) {
	for _, ti := range custom.EntityTypes {
		if _, dup := base.typesByName[ti.Name]; dup {
			return nil, fmt.Errorf("rules: entity type %q redefines a built-in", ti.Name)
		}
		base.EntityTypes = append(base.EntityTypes, ti)
		base.typesByName[ti.Name] = ti
	}
	for _, er := range custom.EntityRules {
		base.EntityRules = append(base.EntityRules, er)
	}
	for _, ep := range custom.EventPatterns {
		ep.Index = len(base.EventPatterns)
		base.EventPatterns = append(base.EventPatterns, ep)
	}
	for t, c := range custom.EventColors {
		base.EventColors[t] = c
	}
	if err := base.validate(); err != nil {
		return nil, err
	}
	return base, nil
}

func (rs *Ruleset) compile() error {
	rs.typesByName = make(map[string]TypeInfo, len(rs.EntityTypes))
	for _, ti := range rs.EntityTypes {
		if ti.Name == "" {
			return fmt.Errorf("rules: entity type with empty name")
		}
		if _, dup := rs.typesByName[ti.Name]; dup {
			return fmt.Errorf("rules: duplicate entity type %q", ti.Name)
		}
		rs.typesByName[ti.Name] = ti
	}
	if rs.EventColors == nil {
		rs.EventColors = map[string]string{}
	}
	for i := range rs.EntityRules {
		er := &rs.EntityRules[i]
		re, err := regexp.Compile(er.Pattern)
		if err != nil {
			return fmt.Errorf("rules: entity rule %q: %w", er.Name, err)
		}
		er.Regexp = re
	}
	for i := range rs.EventPatterns {
		ep := &rs.EventPatterns[i]
		re, err := regexp.Compile(ep.Pattern)
		if err != nil {
			return fmt.Errorf("rules: event pattern %q: %w", ep.Name, err)
		}
		ep.Index = i
		ep.Regexp = re
		ep.Groups = re.SubexpNames()
	}
	return rs.validate()
}

func (rs *Ruleset) validate() error {
	for _, er := range rs.EntityRules {
		if _, ok := rs.typesByName[er.Type]; !ok {
			return fmt.Errorf("rules: entity rule %q references unknown type %q", er.Name, er.Type)
		}
		if er.Confidence < 0 || er.Confidence > 1 {
			return fmt.Errorf("rules: entity rule %q: confidence %v outside [0,1]", er.Name, er.Confidence)
		}
	}
	for _, ep := range rs.EventPatterns {
		if ep.Type == "" {
			return fmt.Errorf("rules: event pattern %q has no type", ep.Name)
		}
		if ep.Confidence < 0 || ep.Confidence > 1 {
			return fmt.Errorf("rules: event pattern %q: confidence %v outside [0,1]", ep.Name, ep.Confidence)
		}
	}
	return nil
}

// TypeInfoFor returns display info for an entity type name.
func (rs *Ruleset) TypeInfoFor(name string) (TypeInfo, bool) {
	ti, ok := rs.typesByName[name]
	return ti, ok
}

// KnownType reports whether name is a registered entity type.
func (rs *Ruleset) KnownType(name string) bool {
	_, ok := rs.typesByName[name]
	return ok
}

// ColorFor returns the highlight color for an entity or event type name.
func (rs *Ruleset) ColorFor(name string) string {
	if ti, ok := rs.typesByName[name]; ok {
		return ti.Color
	}
	if c, ok := rs.EventColors[name]; ok {
		return c
	}
	return "#CCCCCC"
}
