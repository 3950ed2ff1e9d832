package formats

import (
	"testing"

	"github.com/fumiama/go-docx"

	"github.com/deepread/docview/flow"
)

func boldRun(s string) *docx.Run {
	return &docx.Run{
		RunProperties: &docx.RunProperties{Bold: &docx.Bold{}},
		Children:      []interface{}{&docx.Text{Text: s}},
	}
}

func plainRun(s string) *docx.Run {
	return &docx.Run{Children: []interface{}{&docx.Text{Text: s}}}
}

func TestDocxParagraphBoldOverride(t *testing.T) {
	tests := []struct {
		name     string
		children []interface{}
		wantText string
		wantBold bool
	}{
		{"all runs bold", []interface{}{boldRun("Key "), boldRun("finding")}, "Key finding", true},
		{"mixed runs", []interface{}{boldRun("Key "), plainRun("finding")}, "Key finding", false},
		{"whitespace run does not veto", []interface{}{boldRun("Key"), plainRun(" ")}, "Key ", true},
		{"no text-bearing runs", []interface{}{plainRun("")}, "", false},
		{"plain paragraph", []interface{}{plainRun("body")}, "body", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, bold := docxParagraphText(&docx.Paragraph{Children: tt.children})
			if text != tt.wantText {
				t.Fatalf("text = %q, want %q", text, tt.wantText)
			}
			if bold != tt.wantBold {
				t.Fatalf("bold = %v, want %v", bold, tt.wantBold)
			}
		})
	}
}

func TestDocxParagraphBoldUpgradesStyle(t *testing.T) {
	styles := flow.DefaultStyles()
	text, bold := docxParagraphText(&docx.Paragraph{Children: []interface{}{boldRun("Summary")}})
	style := styles.Resolve("", bold)
	if text != "Summary" || !style.Bold {
		t.Fatalf("expected bold body style for all-bold paragraph, got text=%q style=%+v", text, style)
	}
}
