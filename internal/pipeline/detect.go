package pipeline

import "strings"

type DetectResult struct {
	IsInvoice bool
	Score     float64
	Reason    string
}

var detectKeywords = []string{"invoice", "inv#", "bill", "statement", "remit", "amount due", "purchase order"}

// DetectInvoiceMail scores a fetched message on cheap signals: subject and
// body keywords plus the presence of PDF attachments. Messages below the
// threshold are skipped rather than sent through the model.
func DetectInvoiceMail(subject, text string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.3
		}
		if strings.Contains(text, kw) {
			score += 0.1
		}
	}

	for _, name := range attachmentNames {
		if strings.HasSuffix(strings.ToLower(name), ".pdf") {
			score += 0.4
			break
		}
	}

	if score > 1 {
		score = 1
	}

	isInvoice := score >= 0.4
	reason := "rules_negative"
	if isInvoice {
		reason = "rules_positive"
	}

	return DetectResult{IsInvoice: isInvoice, Score: score, Reason: reason}
}
