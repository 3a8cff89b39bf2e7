package stories

import (
	"fmt"
	"strings"
)

const (
	CollectionKind         = "collection"
	SupportedSchemaVersion = 1
)

type Rule string

const (
	RuleEmptyCollection  Rule = "empty_collection"
	RuleEmptyGroup       Rule = "empty_group"
	RuleKindMismatch     Rule = "kind_mismatch"
	RuleUnknownComponent Rule = "unknown_component"
	RuleSchema           Rule = "schema"
	RuleStartOutOfRange  Rule = "start_out_of_range"
)

// ValidationError reports input the viewer refuses to play. Group and Item are
// -1 when the rule is not tied to a position.
type ValidationError struct {
	Rule   Rule
	Group  int
	Item   int
	Detail string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("storyreel: ")
	b.WriteString(string(e.Rule))
	if e.Group >= 0 {
		fmt.Fprintf(&b, " (group %d", e.Group)
		if e.Item >= 0 {
			fmt.Fprintf(&b, ", item %d", e.Item)
		}
		b.WriteString(")")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// File is the on-disk collection document (yaml or json).
type File struct {
	Kind          string        `yaml:"kind" json:"kind"`
	SchemaVersion int           `yaml:"schema_version" json:"schema_version"`
	Title         string        `yaml:"title,omitempty" json:"title,omitempty"`
	Options       Options       `yaml:"options,omitempty" json:"options,omitempty"`
	Groups        []GroupRecord `yaml:"groups" json:"groups"`
}

type GroupRecord struct {
	ID    string       `yaml:"id,omitempty" json:"id,omitempty"`
	Name  string       `yaml:"name" json:"name"`
	Items []ItemRecord `yaml:"items" json:"items"`
}

// ItemRecord is the serialisable form of an Item. Image and video records carry
// Source; custom records carry a registered Component name and its Props.
type ItemRecord struct {
	ID          string            `yaml:"id,omitempty" json:"id,omitempty"`
	Kind        Kind              `yaml:"kind" json:"kind"`
	Source      string            `yaml:"source,omitempty" json:"source,omitempty"`
	Component   string            `yaml:"component,omitempty" json:"component,omitempty"`
	Props       map[string]string `yaml:"props,omitempty" json:"props,omitempty"`
	CrossOrigin CrossOrigin       `yaml:"cross_origin,omitempty" json:"cross_origin,omitempty"`
}

func (f File) Validate() error {
	if f.Kind != CollectionKind {
		return &ValidationError{Rule: RuleSchema, Group: -1, Item: -1, Detail: fmt.Sprintf("kind must be %q", CollectionKind)}
	}
	if f.SchemaVersion == 0 {
		return &ValidationError{Rule: RuleSchema, Group: -1, Item: -1, Detail: "schema_version is required"}
	}
	if f.SchemaVersion > SupportedSchemaVersion {
		return &ValidationError{Rule: RuleSchema, Group: -1, Item: -1, Detail: fmt.Sprintf("unsupported schema_version %d (max supported %d)", f.SchemaVersion, SupportedSchemaVersion)}
	}
	return nil
}

// FromRecords builds a Collection from records, resolving custom components
// through reg.
func FromRecords(groups []GroupRecord, reg Registry) (*Collection, error) {
	if len(groups) == 0 {
		return nil, &ValidationError{Rule: RuleEmptyCollection, Group: -1, Item: -1, Detail: "collection must contain at least one group"}
	}
	out := make([]Group, 0, len(groups))
	for gi, gr := range groups {
		if len(gr.Items) == 0 {
			return nil, &ValidationError{Rule: RuleEmptyGroup, Group: gi, Item: -1, Detail: "group " + quoteName(gr.Name) + " must contain at least one story"}
		}
		g := Group{ID: gr.ID, Name: gr.Name, Items: make([]Item, 0, len(gr.Items))}
		for ii, rec := range gr.Items {
			content, err := rec.content(reg)
			if err != nil {
				err.Group, err.Item = gi, ii
				return nil, err
			}
			g.Items = append(g.Items, Item{ID: rec.ID, Content: content})
		}
		out = append(out, g)
	}
	return NewCollection(out)
}

func (r ItemRecord) content(reg Registry) (Content, *ValidationError) {
	mismatch := func(detail string) *ValidationError {
		return &ValidationError{Rule: RuleKindMismatch, Detail: detail}
	}
	switch r.Kind {
	case KindImage, KindVideo:
		if r.Component != "" || r.Source == "" {
			return nil, mismatch(fmt.Sprintf("story with kind %q must have a URL string as content", r.Kind))
		}
		if r.Kind == KindImage {
			return Image{Source: r.Source, CrossOrigin: r.CrossOrigin.normalized()}, nil
		}
		return Video{Source: r.Source, CrossOrigin: r.CrossOrigin.normalized()}, nil
	case KindCustom:
		if r.Component == "" {
			return nil, mismatch(`story with kind "custom" must have a component as content, not a string`)
		}
		c, err := reg.Resolve(r.Component, r.Props)
		if err != nil {
			return nil, &ValidationError{Rule: RuleUnknownComponent, Detail: err.Error()}
		}
		return Custom{Name: r.Component, Props: copyProps(r.Props), Component: c}, nil
	default:
		return nil, mismatch(fmt.Sprintf("unknown story kind %q", r.Kind))
	}
}

// Records returns the serialisable form of c. FromRecords(c.Records(), reg)
// yields an equal collection when reg knows every custom component.
func (c *Collection) Records() []GroupRecord {
	out := make([]GroupRecord, 0, c.Len())
	for _, g := range c.Groups() {
		gr := GroupRecord{ID: g.ID, Name: g.Name, Items: make([]ItemRecord, 0, len(g.Items))}
		for _, item := range g.Items {
			rec := ItemRecord{ID: item.ID, Kind: item.Kind()}
			switch v := item.Content.(type) {
			case Image:
				rec.Source, rec.CrossOrigin = v.Source, v.CrossOrigin
			case Video:
				rec.Source, rec.CrossOrigin = v.Source, v.CrossOrigin
			case Custom:
				rec.Component, rec.Props = v.Name, copyProps(v.Props)
			}
			gr.Items = append(gr.Items, rec)
		}
		out = append(out, gr)
	}
	return out
}

func copyProps(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
