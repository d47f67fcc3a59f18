// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/jeranaias/chatterm/internal/attach"
	"github.com/jeranaias/chatterm/internal/util"
)

// maxDocumentRunes caps the text taken from one attachment.
const maxDocumentRunes = 12000

// textTypes are non-text/* MIME types that are read as plain text.
var textTypes = map[string]bool{
	"application/json":       true,
	"application/xml":        true,
	"application/x-yaml":     true,
	"application/yaml":       true,
	"application/toml":       true,
	"application/javascript": true,
	"application/x-sh":       true,
}

// ExtractText returns the readable text of a document attachment.
func ExtractText(a attach.Attachment) (string, error) {
	data, err := a.Bytes()
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", a.Name, err)
	}

	switch {
	case a.MimeType == "application/pdf":
		return extractPDF(data)
	case strings.HasPrefix(a.MimeType, "text/"), textTypes[a.MimeType]:
		return string(data), nil
	case utf8.Valid(data) && !bytes.ContainsRune(data, 0):
		return string(data), nil
	}
	return "", fmt.Errorf("%s: unsupported file type %s", a.Name, a.MimeType)
}

func extractPDF(data []byte) (string, error) {
	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= rdr.NumPage(); i++ {
		pg := rdr.Page(i)
		if pg.V.IsNull() {
			continue
		}
		txt, err := pg.GetPlainText(nil)
		if err != nil {
			// Image-only pages have no text layer.
			continue
		}
		if s := strings.TrimSpace(txt); s != "" {
			pages = append(pages, "Page "+strconv.Itoa(i)+"\n"+s)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// documentContext renders document attachments as prompt context. Files
// that cannot be read are named so the model can say so.
func documentContext(files []attach.Attachment) string {
	var b strings.Builder
	for _, f := range files {
		text, err := ExtractText(f)
		if err != nil || strings.TrimSpace(text) == "" {
			fmt.Fprintf(&b, "[Attached file %q (%s, %s): contents could not be read]\n\n",
				f.Name, f.MimeType, util.HumanBytes(f.Size()))
			continue
		}
		fmt.Fprintf(&b, "[Attached file %q]\n%s\n[End of %q]\n\n",
			f.Name, util.TruncateRunes(strings.TrimSpace(text), maxDocumentRunes), f.Name)
	}
	return b.String()
}
