package pipeline

import (
	"bytes"
	"strings"

	"github.com/jhillyerd/enmime"
)

// PDFAttachment is one invoice candidate pulled out of a mail message.
type PDFAttachment struct {
	FileName string
	Content  []byte
}

// ExtractPDFAttachments parses a raw RFC 5322 message and returns its PDF
// attachments together with the message subject and plain-text body.
func ExtractPDFAttachments(raw []byte) ([]PDFAttachment, string, string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, "", "", err
	}

	var out []PDFAttachment
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment.pdf"
		}
		if !isPDFAttachment(filename, att.ContentType) {
			continue
		}
		out = append(out, PDFAttachment{FileName: filename, Content: att.Content})
	}

	return out, env.GetHeader("Subject"), env.Text, nil
}

func isPDFAttachment(filename, contentType string) bool {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(contentType), "application/pdf")
}
