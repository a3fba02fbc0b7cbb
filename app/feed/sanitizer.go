package feed

import (
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// baselineElements is the widest set of tags (and their attributes) an
// article body may keep. SanitizerOptions can only remove from it.
var baselineElements = map[string][]string{
	"a":          {"href", "title"},
	"abbr":       {"title"},
	"b":          nil,
	"blockquote": {"cite"},
	"br":         nil,
	"caption":    nil,
	"code":       nil,
	"dd":         nil,
	"del":        nil,
	"div":        nil,
	"dl":         nil,
	"dt":         nil,
	"em":         nil,
	"figcaption": nil,
	"figure":     nil,
	"h1":         nil,
	"h2":         nil,
	"h3":         nil,
	"h4":         nil,
	"h5":         nil,
	"h6":         nil,
	"hr":         nil,
	"i":          nil,
	"img":        {"src", "alt", "title", "width", "height"},
	"ins":        nil,
	"li":         nil,
	"ol":         nil,
	"p":          nil,
	"pre":        nil,
	"q":          {"cite"},
	"s":          nil,
	"small":      nil,
	"span":       nil,
	"strong":     nil,
	"sub":        nil,
	"sup":        nil,
	"table":      nil,
	"tbody":      nil,
	"td":         {"colspan", "rowspan"},
	"tfoot":      nil,
	"th":         {"colspan", "rowspan", "scope"},
	"thead":      nil,
	"tr":         nil,
	"u":          nil,
	"ul":         nil,
}

// SanitizerOptions narrows the baseline allow-list.
type SanitizerOptions struct {
	// AllowedElements, when non-empty, keeps only these baseline elements.
	// Names outside the baseline are ignored.
	AllowedElements []string `yaml:"allowed_elements"`
	StripImages     bool     `yaml:"strip_images"`
	StripLinks      bool     `yaml:"strip_links"`
}

type Sanitizer struct {
	policy   *bluemonday.Policy
	elements []string
}

func NewSanitizer(opts SanitizerOptions) *Sanitizer {
	elements := allowedElements(opts)

	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	for _, element := range elements {
		p.AllowElements(element)
		if attrs := baselineElements[element]; len(attrs) > 0 {
			p.AllowAttrs(attrs...).OnElements(element)
		}
	}

	return &Sanitizer{
		policy:   p,
		elements: elements,
	}
}

func (s *Sanitizer) Sanitize(html string) string {
	return strings.TrimSpace(s.policy.Sanitize(html))
}

// Elements returns the effective allow-list in sorted order.
func (s *Sanitizer) Elements() []string {
	return slices.Clone(s.elements)
}

func allowedElements(opts SanitizerOptions) []string {
	var requested map[string]bool
	if len(opts.AllowedElements) > 0 {
		requested = make(map[string]bool, len(opts.AllowedElements))
		for _, name := range opts.AllowedElements {
			requested[strings.ToLower(strings.TrimSpace(name))] = true
		}
	}

	elements := make([]string, 0, len(baselineElements))
	for element := range baselineElements {
		if requested != nil && !requested[element] {
			continue
		}
		if opts.StripImages && element == "img" {
			continue
		}
		if opts.StripLinks && element == "a" {
			continue
		}
		elements = append(elements, element)
	}
	slices.Sort(elements)

	return elements
}
