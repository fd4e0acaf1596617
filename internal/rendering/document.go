package rendering

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"podscribe/internal/store"
)

// Document is everything the review Markdown needs, loaded up front so the
// renderer itself stays pure.
type Document struct {
	Episode      *store.Episode
	Chapters     []*store.Chapter
	Cues         []*store.Cue
	Translations map[string]map[int64]*store.Translation
	Languages    []string
	GeneratedAt  time.Time
}

// DocumentPath returns the canonical review file location for an episode.
func DocumentPath(reviewDir string, episodeID int64) string {
	return filepath.Join(reviewDir, fmt.Sprintf("episode_%d.md", episodeID))
}

// FormatTimestamp renders seconds as the MM:SS (or H:MM:SS) cue anchor label.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// Render produces the full review document. The layout is load-bearing: the
// review reconciler reads edits back out of the YAML frontmatter, the
// cue:// anchors, and the per-language blockquotes.
func Render(doc Document) string {
	var b strings.Builder

	b.WriteString("---\n")
	fmt.Fprintf(&b, "episode_id: %d\n", doc.Episode.ID)
	fmt.Fprintf(&b, "title: %q\n", doc.Episode.Title)
	fmt.Fprintf(&b, "status: %s\n", doc.Episode.WorkflowStatus)
	b.WriteString("approved: false\n")
	fmt.Fprintf(&b, "languages: [%s]\n", strings.Join(doc.Languages, ", "))
	fmt.Fprintf(&b, "generated_at: %s\n", doc.GeneratedAt.UTC().Format(time.RFC3339))
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# %s\n\n", doc.Episode.Title)
	b.WriteString("Set `approved: true` above once every translation reads well. ")
	b.WriteString("Edit translated lines in place; the original transcript is read-only.\n\n")

	if len(doc.Chapters) > 0 {
		b.WriteString("## Chapters\n\n")
		for _, chapter := range doc.Chapters {
			fmt.Fprintf(&b, "1. %s (%s)\n", chapter.Title, FormatTimestamp(chapter.StartTime))
		}
		b.WriteString("\n")
	}

	byChapter := groupCues(doc.Cues, doc.Chapters)
	for _, chapter := range doc.Chapters {
		fmt.Fprintf(&b, "## %s\n\n", chapter.Title)
		if chapter.Summary != "" {
			fmt.Fprintf(&b, "_%s_\n\n", chapter.Summary)
		}
		renderCues(&b, byChapter[chapter.ID], doc)
	}
	if orphans := byChapter[0]; len(orphans) > 0 {
		if len(doc.Chapters) > 0 {
			b.WriteString("## Unassigned\n\n")
		}
		renderCues(&b, orphans, doc)
	}

	return b.String()
}

func renderCues(b *strings.Builder, cues []*store.Cue, doc Document) {
	for _, cue := range cues {
		label := FormatTimestamp(cue.StartTime)
		if cue.Speaker != "" {
			fmt.Fprintf(b, "### [%s](cue://%d) %s\n\n", label, cue.ID, escapeMarkdown(cue.Speaker))
		} else {
			fmt.Fprintf(b, "### [%s](cue://%d)\n\n", label, cue.ID)
		}
		fmt.Fprintf(b, "%s\n\n", escapeMarkdown(cue.EffectiveText()))
		for _, lang := range doc.Languages {
			if translation, ok := doc.Translations[lang][cue.ID]; ok {
				fmt.Fprintf(b, "> %s: %s\n", lang, escapeMarkdown(translation.CurrentText))
			}
		}
		if len(doc.Languages) > 0 {
			b.WriteString("\n")
		}
	}
}

// markdownEscaper backslash-escapes the characters the markdown parser would
// otherwise consume, so stored text survives a render/reconcile round trip
// unchanged. The reconciler strips the same escapes when it reads the
// document back.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	`*`, `\*`,
	`_`, `\_`,
	`[`, `\[`,
	`]`, `\]`,
	`<`, `\<`,
	`>`, `\>`,
	`#`, `\#`,
	`|`, `\|`,
	`~`, `\~`,
)

func escapeMarkdown(text string) string {
	escaped := markdownEscaper.Replace(text)
	return escapeLeadingMarker(escaped)
}

// escapeLeadingMarker neutralizes list markers at the start of a paragraph,
// which would otherwise turn the transcript line into a list block.
func escapeLeadingMarker(text string) string {
	if strings.HasPrefix(text, "- ") || strings.HasPrefix(text, "+ ") {
		return `\` + text
	}
	digits := 0
	for digits < len(text) && text[digits] >= '0' && text[digits] <= '9' {
		digits++
	}
	if digits > 0 && digits < len(text) && (text[digits] == '.' || text[digits] == ')') {
		return text[:digits] + `\` + text[digits:]
	}
	return text
}

func groupCues(cues []*store.Cue, chapters []*store.Chapter) map[int64][]*store.Cue {
	grouped := make(map[int64][]*store.Cue)
	for _, cue := range cues {
		grouped[cue.ChapterID] = append(grouped[cue.ChapterID], cue)
	}
	for _, list := range grouped {
		sort.Slice(list, func(i, j int) bool { return list[i].StartTime < list[j].StartTime })
	}
	return grouped
}

// LanguageLabel renders a BCP 47 tag as an English display name for tables
// and notifications.
func LanguageLabel(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
