package review

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const anchorScheme = "cue://"

// Meta is the YAML frontmatter block of a review document. Approved is the
// entity-level approval marker a reviewer flips by hand.
type Meta struct {
	EpisodeID int64    `yaml:"episode_id"`
	Title     string   `yaml:"title"`
	Status    string   `yaml:"status"`
	Approved  bool     `yaml:"approved"`
	Languages []string `yaml:"languages"`
}

// Entry is one anchored cue section read back from a document: the editable
// transcript text plus the per-language translation lines.
type Entry struct {
	CueID        int64
	Text         string
	Translations map[string]string
}

// Warning reports a non-fatal reconciliation problem. The rest of the
// document still reconciles.
type Warning struct {
	CueID   int64
	Message string
}

// ParsedDocument is the structured form of a review document. Anchors are
// the only key back into the database; labels and positions are ignored.
type ParsedDocument struct {
	Meta     Meta
	Entries  []Entry
	Warnings []Warning
}

// ParseDocument reads the frontmatter and every anchored section of a review
// document. Duplicate anchors keep the first occurrence and warn on the rest.
func ParseDocument(content []byte) (*ParsedDocument, error) {
	var meta Meta
	body, err := frontmatter.Parse(strings.NewReader(string(content)), &meta)
	if err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if meta.EpisodeID == 0 {
		return nil, fmt.Errorf("document declares no episode_id")
	}

	doc := &ParsedDocument{Meta: meta}
	root := goldmark.New().Parser().Parse(text.NewReader(body))

	seen := make(map[int64]bool)
	var current *Entry
	flush := func() {
		if current != nil {
			doc.Entries = append(doc.Entries, *current)
			current = nil
		}
	}

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		switch typed := node.(type) {
		case *ast.Heading:
			flush()
			cueID, ok := anchorIn(typed, body)
			if !ok {
				continue
			}
			if seen[cueID] {
				doc.Warnings = append(doc.Warnings, Warning{
					CueID:   cueID,
					Message: "duplicate anchor; keeping the first occurrence",
				})
				continue
			}
			seen[cueID] = true
			current = &Entry{CueID: cueID, Translations: make(map[string]string)}
		case *ast.Paragraph:
			if current == nil {
				continue
			}
			// The first paragraph under an anchor is the transcript text.
			if current.Text == "" {
				current.Text = nodeText(typed, body)
			}
		case *ast.Blockquote:
			if current == nil {
				continue
			}
			lang, translated, ok := splitTranslationLine(nodeText(typed, body))
			if !ok {
				doc.Warnings = append(doc.Warnings, Warning{
					CueID:   current.CueID,
					Message: "blockquote without a language prefix",
				})
				continue
			}
			current.Translations[lang] = translated
		}
	}
	flush()

	return doc, nil
}

// anchorIn extracts the cue anchor from a heading, if it carries one.
func anchorIn(heading *ast.Heading, source []byte) (int64, bool) {
	var cueID int64
	found := false
	_ = ast.Walk(heading, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || found {
			return ast.WalkContinue, nil
		}
		link, ok := node.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}
		dest := string(link.Destination)
		if !strings.HasPrefix(dest, anchorScheme) {
			return ast.WalkContinue, nil
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(dest, anchorScheme), 10, 64)
		if err != nil || id <= 0 {
			return ast.WalkContinue, nil
		}
		cueID = id
		found = true
		return ast.WalkSkipChildren, nil
	})
	return cueID, found
}

// splitTranslationLine parses "lang: translated text".
func splitTranslationLine(line string) (string, string, bool) {
	lang, rest, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	lang = strings.TrimSpace(lang)
	rest = strings.TrimSpace(rest)
	if lang == "" || strings.ContainsAny(lang, " \t") || rest == "" {
		return "", "", false
	}
	return lang, rest, true
}

// nodeText flattens a node's inline text, joining soft line breaks with a
// space so reviewer re-wrapping does not read as an edit. Backslash escapes
// are resolved so text the renderer escaped compares equal to the stored
// value.
func nodeText(root ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch typed := node.(type) {
		case *ast.Text:
			b.Write(typed.Segment.Value(source))
			if typed.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(typed.Value)
		}
		return ast.WalkContinue, nil
	})
	unescaped := util.UnescapePunctuations([]byte(b.String()))
	return strings.TrimSpace(string(unescaped))
}
