package autolink

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/siherrmann/canon/core/store"
	"github.com/siherrmann/canon/helper"
	"github.com/siherrmann/canon/model"
)

// LinkableSource supplies the entities eligible for linking and records
// applied links.
type LinkableSource interface {
	LinkableEntries() ([]*store.LinkableEntry, error)
	RecordAssociation(association *model.Association) error
}

// Linker injects links for known entity terms into HTML content.
// Linking is idempotent: text already inside an anchor is never
// touched, so running the linker twice produces the same output.
type Linker struct {
	store  LinkableSource
	config model.LinkConfig
	logger *slog.Logger
}

// NewLinker creates an auto-linker with the given configuration.
func NewLinker(store LinkableSource, config model.LinkConfig, logger *slog.Logger) (*Linker, error) {
	err := config.Validate()
	if err != nil {
		return nil, helper.NewError("validating link config", err)
	}
	return &Linker{
		store:  store,
		config: config,
		logger: logger,
	}, nil
}

// AppliedLink records one link the linker injected.
type AppliedLink struct {
	EntityID int64  `json:"entity_id"`
	Term     string `json:"term"`
	URL      string `json:"url"`
}

// Result is the outcome of one linking pass.
type Result struct {
	HTML    string        `json:"html"`
	Applied []AppliedLink `json:"applied"`
}

// pattern is one compiled matchable term bound to its entity and rule.
type pattern struct {
	entityID int64
	term     string
	re       *regexp.Regexp
	rule     *model.LinkRule
}

// Link loads the linkable entities and applies them to the document's
// HTML body. Applied links are persisted as link associations.
func (l *Linker) Link(documentID int64, htmlBody string) (*Result, error) {
	entries, err := l.store.LinkableEntries()
	if err != nil {
		return nil, helper.NewError("loading linkable entities", err)
	}

	result, err := l.LinkWith(htmlBody, entries)
	if err != nil {
		return nil, err
	}

	for _, applied := range result.Applied {
		err := l.store.RecordAssociation(&model.Association{
			DocumentID: documentID,
			EntityID:   applied.EntityID,
			Role:       model.RoleLink,
			Confidence: 1,
			DetectedBy: model.DetectedAuto,
		})
		if err != nil {
			return nil, helper.NewError("recording link association", err)
		}
	}

	l.logger.Info("Applied auto-links",
		slog.Int64("documentId", documentID),
		slog.Int("links", len(result.Applied)))

	return result, nil
}

// LinkWith applies an already loaded set of linkable entries to HTML.
func (l *Linker) LinkWith(htmlBody string, entries []*store.LinkableEntry) (*Result, error) {
	patterns := l.buildPatterns(entries)
	result := &Result{HTML: htmlBody}
	if len(patterns) == 0 {
		return result, nil
	}

	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return nil, helper.NewError("parsing html", err)
	}

	body := findBody(doc)
	if body == nil {
		return result, nil
	}

	state := &linkState{
		budget:    l.config.MaxLinksPerDocument,
		perEntity: map[int64]int{},
	}
	l.walk(body, patterns, state, result)

	var sb strings.Builder
	for child := body.FirstChild; child != nil; child = child.NextSibling {
		err := html.Render(&sb, child)
		if err != nil {
			return nil, helper.NewError("rendering html", err)
		}
	}
	result.HTML = sb.String()

	return result, nil
}

// buildPatterns compiles the matchable terms of all entries, longest
// term first so "Acme Cloud Platform" wins over "Acme".
func (l *Linker) buildPatterns(entries []*store.LinkableEntry) []*pattern {
	var patterns []*pattern
	for _, entry := range entries {
		rule := entry.Rule
		if rule == nil {
			rule = model.DefaultLinkRule(entry.Entry.Entity.ID)
			rule.Mode = l.config.DefaultMode
		}
		if !rule.Mode.AllowsAuto() || rule.TargetURL == "" {
			continue
		}

		for _, term := range entry.Entry.Terms() {
			if len(term) < l.config.MinTermLength {
				continue
			}
			re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
			if err != nil {
				continue
			}
			patterns = append(patterns, &pattern{
				entityID: entry.Entry.Entity.ID,
				term:     term,
				re:       re,
				rule:     rule,
			})
		}
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		return len(patterns[i].term) > len(patterns[j].term)
	})

	return patterns
}

type linkState struct {
	budget    int
	perEntity map[int64]int
}

// zones not eligible for linking regardless of any rule
var alwaysSkip = map[atom.Atom]bool{
	atom.A:      true,
	atom.Strong: true,
	atom.Em:     true,
}

var headingAtoms = map[atom.Atom]bool{
	atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true,
}

var quoteAtoms = map[atom.Atom]bool{
	atom.Blockquote: true,
	atom.Q:          true,
}

var codeAtoms = map[atom.Atom]bool{
	atom.Code: true,
	atom.Pre:  true,
}

// walk visits text nodes in document order and applies patterns to
// each. Anchors injected during the walk are never revisited.
func (l *Linker) walk(node *html.Node, patterns []*pattern, state *linkState, result *Result) {
	if state.budget <= 0 {
		return
	}

	if node.Type == html.TextNode {
		l.linkTextNode(node, patterns, state, result)
		return
	}

	if node.Type == html.ElementNode && alwaysSkip[node.DataAtom] {
		return
	}

	// snapshot children before descending, node splitting inserts siblings
	var children []*html.Node
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		children = append(children, child)
	}
	for _, child := range children {
		l.walk(child, patterns, state, result)
	}
}

// linkTextNode applies the patterns to one text node. A matched stretch
// is replaced by an anchor; the surrounding text stays matchable for
// the remaining patterns. In all mode the trailing text is re-scanned
// so every occurrence gets linked, in first_only mode one link per
// entity ends the scan.
func (l *Linker) linkTextNode(node *html.Node, patterns []*pattern, state *linkState, result *Result) {
	ancestors := ancestorAtoms(node)

	// segments alternate between matchable text and injected anchors
	type segment struct {
		text   string
		anchor *html.Node
	}
	segments := []*segment{{text: node.Data}}
	replaced := false

	for _, p := range patterns {
		if state.budget <= 0 {
			break
		}
		if skippedByRule(p.rule, ancestors) {
			continue
		}

		for i := 0; i < len(segments); i++ {
			if state.budget <= 0 {
				break
			}
			if p.rule.Mode == model.LinkModeFirstOnly && state.perEntity[p.entityID] > 0 {
				break
			}

			seg := segments[i]
			if seg.anchor != nil {
				continue
			}
			loc := p.re.FindStringIndex(seg.text)
			if loc == nil {
				continue
			}

			matched := seg.text[loc[0]:loc[1]]
			anchor := buildAnchor(p.rule, matched)

			before := seg.text[:loc[0]]
			after := seg.text[loc[1]:]
			tail := segments[i+1:]
			segments = append(segments[:i:i],
				&segment{text: before},
				&segment{anchor: anchor},
				&segment{text: after},
			)
			segments = append(segments, tail...)

			state.budget--
			state.perEntity[p.entityID]++
			result.Applied = append(result.Applied, AppliedLink{
				EntityID: p.entityID,
				Term:     matched,
				URL:      p.rule.TargetURL,
			})
			replaced = true

			// the trailing text sits two segments ahead, the loop
			// lands on it next and scans for further occurrences
			i++
		}
	}

	if !replaced {
		return
	}

	parent := node.Parent
	for _, seg := range segments {
		var newNode *html.Node
		if seg.anchor != nil {
			newNode = seg.anchor
		} else {
			if seg.text == "" {
				continue
			}
			newNode = &html.Node{Type: html.TextNode, Data: seg.text}
		}
		parent.InsertBefore(newNode, node)
	}
	parent.RemoveChild(node)
}

func buildAnchor(rule *model.LinkRule, text string) *html.Node {
	anchor := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.A,
		Data:     "a",
		Attr:     []html.Attribute{{Key: "href", Val: rule.TargetURL}},
	}

	var rel []string
	if rule.Nofollow {
		rel = append(rel, "nofollow")
	}
	if rule.NewTab {
		anchor.Attr = append(anchor.Attr, html.Attribute{Key: "target", Val: "_blank"})
		rel = append(rel, "noopener")
	}
	if len(rel) > 0 {
		anchor.Attr = append(anchor.Attr, html.Attribute{Key: "rel", Val: strings.Join(rel, " ")})
	}

	anchor.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return anchor
}

func skippedByRule(rule *model.LinkRule, ancestors []atom.Atom) bool {
	for _, a := range ancestors {
		if rule.SkipHeadings && headingAtoms[a] {
			return true
		}
		if rule.SkipQuotes && quoteAtoms[a] {
			return true
		}
		if rule.SkipCode && codeAtoms[a] {
			return true
		}
	}
	return false
}

func ancestorAtoms(node *html.Node) []atom.Atom {
	var atoms []atom.Atom
	for parent := node.Parent; parent != nil; parent = parent.Parent {
		if parent.Type == html.ElementNode {
			atoms = append(atoms, parent.DataAtom)
		}
	}
	return atoms
}

func findBody(doc *html.Node) *html.Node {
	var body *html.Node
	var find func(*html.Node)
	find = func(node *html.Node) {
		if body != nil {
			return
		}
		if node.Type == html.ElementNode && node.DataAtom == atom.Body {
			body = node
			return
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			find(child)
		}
	}
	find(doc)
	return body
}
