package publishing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"podscribe/internal/rendering"
)

// MarkdownExporter writes the final transcript and one file per translation
// language into the export directory.
type MarkdownExporter struct {
	ExportDir string
}

// NewMarkdownExporter constructs the filesystem export target.
func NewMarkdownExporter(exportDir string) *MarkdownExporter {
	return &MarkdownExporter{ExportDir: exportDir}
}

func (e *MarkdownExporter) Name() string {
	return "markdown-export"
}

// Publish writes export files under <exportDir>/episode_<id>/.
func (e *MarkdownExporter) Publish(ctx context.Context, doc rendering.Document) (string, error) {
	dir := filepath.Join(e.ExportDir, fmt.Sprintf("episode_%d", doc.Episode.ID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure export dir: %w", err)
	}

	transcriptPath := filepath.Join(dir, "transcript.md")
	if err := os.WriteFile(transcriptPath, []byte(e.renderTranscript(doc)), 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	for _, lang := range doc.Languages {
		path := filepath.Join(dir, lang+".md")
		if err := os.WriteFile(path, []byte(e.renderLanguage(doc, lang)), 0o644); err != nil {
			return "", fmt.Errorf("write %s export: %w", lang, err)
		}
	}
	return dir, nil
}

func (e *MarkdownExporter) renderTranscript(doc rendering.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Episode.Title)
	for _, cue := range doc.Cues {
		fmt.Fprintf(&b, "**%s**", rendering.FormatTimestamp(cue.StartTime))
		if cue.Speaker != "" {
			fmt.Fprintf(&b, " %s", cue.Speaker)
		}
		fmt.Fprintf(&b, "\n\n%s\n\n", cue.EffectiveText())
	}
	return b.String()
}

func (e *MarkdownExporter) renderLanguage(doc rendering.Document, lang string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s)\n\n", doc.Episode.Title, rendering.LanguageLabel(lang))
	for _, cue := range doc.Cues {
		translation, ok := doc.Translations[lang][cue.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "**%s**\n\n%s\n\n", rendering.FormatTimestamp(cue.StartTime), translation.CurrentText)
	}
	return b.String()
}
