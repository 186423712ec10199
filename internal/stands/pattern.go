package stands

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholders recognised in a stand naming template
const (
	RootPlaceholder      = "<standroot>"
	ExtensionPlaceholder = "<extensions>"
)

type segmentKind int

const (
	segmentLiteral segmentKind = iota
	segmentRoot
	segmentExtension
)

type segment struct {
	kind segmentKind
	text string
}

// Pattern is a compiled stand naming template such as "<standroot><extensions>".
// It splits a stand name into its numeric root and side extension, and renders
// names back from a root and extension.
type Pattern struct {
	segments   []segment
	extensions []string
	re         *regexp.Regexp
	rootGroup  int // submatch index of the root, 0 when the template has no root
	extGroup   int // submatch index of the extension, 0 when the template has none
}

// ParsePattern compiles a naming template against a set of extension tokens.
// Each placeholder may appear at most once.
func ParsePattern(template string, extensions []string) (*Pattern, error) {
	p := &Pattern{}

	for _, ext := range extensions {
		if ext != "" {
			p.extensions = append(p.extensions, ext)
		}
	}

	rest := template
	for rest != "" {
		ri := strings.Index(rest, RootPlaceholder)
		ei := strings.Index(rest, ExtensionPlaceholder)

		next, kind, width := -1, segmentLiteral, 0
		switch {
		case ri >= 0 && (ei < 0 || ri < ei):
			next, kind, width = ri, segmentRoot, len(RootPlaceholder)
		case ei >= 0:
			next, kind, width = ei, segmentExtension, len(ExtensionPlaceholder)
		}

		if next < 0 {
			p.segments = append(p.segments, segment{kind: segmentLiteral, text: rest})
			break
		}
		if next > 0 {
			p.segments = append(p.segments, segment{kind: segmentLiteral, text: rest[:next]})
		}
		p.segments = append(p.segments, segment{kind: kind})
		rest = rest[next+width:]
	}

	var expr strings.Builder
	expr.WriteString("^")
	group := 0
	for _, seg := range p.segments {
		switch seg.kind {
		case segmentLiteral:
			expr.WriteString(regexp.QuoteMeta(seg.text))
		case segmentRoot:
			if p.rootGroup != 0 {
				return nil, fmt.Errorf("%w: %q uses %s more than once", ErrInvalidPattern, template, RootPlaceholder)
			}
			group++
			p.rootGroup = group
			expr.WriteString(`(\d+)`)
		case segmentExtension:
			if p.extGroup != 0 {
				return nil, fmt.Errorf("%w: %q uses %s more than once", ErrInvalidPattern, template, ExtensionPlaceholder)
			}
			group++
			p.extGroup = group
			quoted := make([]string, len(p.extensions))
			for i, ext := range p.extensions {
				quoted[i] = regexp.QuoteMeta(ext)
			}
			expr.WriteString("(" + strings.Join(quoted, "|") + ")?")
		}
	}
	expr.WriteString("$")

	re, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	p.re = re

	return p, nil
}

// Extensions returns the extension tokens known to the pattern
func (p *Pattern) Extensions() []string {
	return append([]string(nil), p.extensions...)
}

// Match splits a stand name into root and extension. Names that do not follow
// the template report ok=false with both parts empty.
func (p *Pattern) Match(name string) (root, extension string, ok bool) {
	m := p.re.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	if p.rootGroup != 0 {
		root = m[p.rootGroup]
	}
	if p.extGroup != 0 {
		extension = m[p.extGroup]
	}
	return root, extension, true
}

// Render builds a stand name from a root and extension
func (p *Pattern) Render(root, extension string) string {
	var b strings.Builder
	for _, seg := range p.segments {
		switch seg.kind {
		case segmentLiteral:
			b.WriteString(seg.text)
		case segmentRoot:
			b.WriteString(root)
		case segmentExtension:
			b.WriteString(extension)
		}
	}
	return b.String()
}

// Variants returns every name sharing the given root: the bare form first,
// then one per extension token, without duplicates.
func (p *Pattern) Variants(root string) []string {
	seen := make(map[string]bool, len(p.extensions)+1)
	names := make([]string, 0, len(p.extensions)+1)
	for _, ext := range append([]string{""}, p.extensions...) {
		name := p.Render(root, ext)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
