package formats

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/deepread/docview/document"
	"github.com/deepread/docview/flow"
	"github.com/deepread/docview/observability"
)

// openText reads a plain-text file and paginates it line per paragraph.
// Files that are not valid UTF-8 are decoded as GBK, then Latin-1 as the
// final fallback that accepts any byte sequence.
func openText(path string, o options) (document.Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text file: %w", err)
	}
	content, enc := decodeText(data)
	o.log.Debug("decoded text file",
		observability.String("file", filepath.Base(path)),
		observability.String("encoding", enc))

	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")

	styles := flow.DefaultStyles()
	paras := make([]flow.Paragraph, 0, len(lines))
	for _, line := range lines {
		paras = append(paras, flow.Paragraph{
			Text:  line,
			Style: styles.Resolve("", false),
		})
	}

	meta := document.Metadata{
		FileName: filepath.Base(path),
		Title:    stem(path),
		Subject:  "Plain Text Document",
	}
	return flow.NewDocument(meta, paras, flow.TextConfig(), o.lib), nil
}

// decodeText returns the decoded content and the name of the encoding used.
func decodeText(data []byte) (string, string) {
	if utf8.Valid(data) {
		return string(data), "utf-8"
	}
	if out, err := simplifiedchinese.GBK.NewDecoder().Bytes(data); err == nil {
		return string(out), "gbk"
	}
	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(data)
	return string(out), "latin-1"
}
