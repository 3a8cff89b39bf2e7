package stories

import "github.com/google/uuid"

type Kind string

const (
	KindImage  Kind = "image"
	KindVideo  Kind = "video"
	KindCustom Kind = "custom"
)

type CrossOrigin string

const (
	CrossOriginAnonymous      CrossOrigin = "anonymous"
	CrossOriginUseCredentials CrossOrigin = "use-credentials"
	CrossOriginNone           CrossOrigin = "none"
)

func (c CrossOrigin) normalized() CrossOrigin {
	switch c {
	case CrossOriginUseCredentials, CrossOriginNone:
		return c
	default:
		return CrossOriginAnonymous
	}
}

// Content is the payload of an item. The set of implementations is closed:
// Image, Video and Custom.
type Content interface {
	Kind() Kind
	Accept(v Visitor)
	sealed()
}

// Visitor receives the concrete content of an item. A new content kind adds a
// method here, so every visitor in the tree stops compiling until it handles it.
type Visitor interface {
	VisitImage(Image)
	VisitVideo(Video)
	VisitCustom(Custom)
}

type Image struct {
	Source      string
	CrossOrigin CrossOrigin
}

func (Image) Kind() Kind { return KindImage }
func (c Image) Accept(v Visitor) { v.VisitImage(c) }
func (Image) sealed() {}

type Video struct {
	Source      string
	CrossOrigin CrossOrigin
}

func (Video) Kind() Kind { return KindVideo }
func (c Video) Accept(v Visitor) { v.VisitVideo(c) }
func (Video) sealed() {}

// Custom carries an application component. Name and Props are the registry
// reference used to rebuild the component from records.
type Custom struct {
	Name      string
	Props     map[string]string
	Component Component
}

func (Custom) Kind() Kind { return KindCustom }
func (c Custom) Accept(v Visitor) { v.VisitCustom(c) }
func (Custom) sealed() {}

// Component renders custom story content into a width x height cell area.
type Component interface {
	Render(width, height int) (string, error)
}

type Item struct {
	ID      string
	Content Content
}

func NewImage(source string) Item {
	return Item{Content: Image{Source: source, CrossOrigin: CrossOriginAnonymous}}
}

func NewVideo(source string) Item {
	return Item{Content: Video{Source: source, CrossOrigin: CrossOriginAnonymous}}
}

func NewCustom(name string, c Component) Item {
	return Item{Content: Custom{Name: name, Component: c}}
}

func (i Item) Kind() Kind {
	if i.Content == nil {
		return ""
	}
	return i.Content.Kind()
}

// Source returns the media source of image and video items, "" otherwise.
func (i Item) Source() string {
	switch c := i.Content.(type) {
	case Image:
		return c.Source
	case Video:
		return c.Source
	}
	return ""
}

type Group struct {
	ID    string
	Name  string
	Items []Item
}

// Collection is an ordered, non-empty list of non-empty groups. It is only
// built through NewCollection or FromRecords and never changes afterwards.
type Collection struct {
	groups []Group
}

// NewCollection validates groups and assigns ids where missing. The input
// slices are copied, never mutated.
func NewCollection(groups []Group) (*Collection, error) {
	if len(groups) == 0 {
		return nil, &ValidationError{Rule: RuleEmptyCollection, Group: -1, Item: -1, Detail: "collection must contain at least one group"}
	}
	out := make([]Group, len(groups))
	for gi, g := range groups {
		if len(g.Items) == 0 {
			return nil, &ValidationError{Rule: RuleEmptyGroup, Group: gi, Item: -1, Detail: "group " + quoteName(g.Name) + " must contain at least one story"}
		}
		items := make([]Item, len(g.Items))
		for ii, item := range g.Items {
			if msg := checkContent(item.Content); msg != "" {
				return nil, &ValidationError{Rule: RuleKindMismatch, Group: gi, Item: ii, Detail: msg}
			}
			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			items[ii] = item
		}
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		g.Items = items
		out[gi] = g
	}
	return &Collection{groups: out}, nil
}

func checkContent(c Content) string {
	switch v := c.(type) {
	case nil:
		return "item has no content"
	case Image:
		if v.Source == "" {
			return `story with kind "image" must have a URL string as content`
		}
	case Video:
		if v.Source == "" {
			return `story with kind "video" must have a URL string as content`
		}
	case Custom:
		if v.Component == nil {
			return `story with kind "custom" must have a component as content, not a string`
		}
		if v.Name == "" {
			return `story with kind "custom" must name its component`
		}
	}
	return ""
}

// Len is the number of groups.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.groups)
}

// Size is the number of items in group i, 0 when i is out of range.
func (c *Collection) Size(i int) int {
	if c == nil || i < 0 || i >= len(c.groups) {
		return 0
	}
	return len(c.groups[i].Items)
}

// Group returns a copy of group i. Changing its items does not change c.
func (c *Collection) Group(i int) (Group, bool) {
	if c == nil || i < 0 || i >= len(c.groups) {
		return Group{}, false
	}
	return cloneGroup(c.groups[i]), true
}

func (c *Collection) Item(group, item int) (Item, bool) {
	if c == nil || group < 0 || group >= len(c.groups) {
		return Item{}, false
	}
	items := c.groups[group].Items
	if item < 0 || item >= len(items) {
		return Item{}, false
	}
	return items[item], true
}

func (c *Collection) Groups() []Group {
	if c == nil {
		return nil
	}
	out := make([]Group, len(c.groups))
	for i, g := range c.groups {
		out[i] = cloneGroup(g)
	}
	return out
}

func cloneGroup(g Group) Group {
	g.Items = append([]Item(nil), g.Items...)
	return g
}

func (c *Collection) ItemCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		n += c.Size(i)
	}
	return n
}

func quoteName(name string) string {
	return `"` + name + `"`
}
