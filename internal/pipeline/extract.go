package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"tariffbench/internal"
	"tariffbench/internal/util"
)

const extractionSystemPrompt = "You are an expert at understanding invoices and producing strict JSON."

func extractionPrompt(transcript string) string {
	return "Extract the following from this invoice text:\n" +
		"- Invoice Number\n" +
		"- Invoice Date\n" +
		"- Vendor\n" +
		"- For each line item: item/manufacturer part number, description, brand, quantity, price, extended price.\n" +
		"Return ONLY a JSON array of line item objects. Each object must include the invoice number and invoice date.\n" +
		"If a field is unknown, set it to an empty string.\n\n" +
		"Text:\n" + transcript
}

// parseLineItemArray salvages an array of line-item records from whatever the
// model returned. First choice: the substring between the first '[' and the
// last ']'. Second: the whole response as an object whose first array-valued
// member, in document order, is taken. Failure is recoverable; the caller
// shows the raw text.
func parseLineItemArray(raw string) ([]map[string]string, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start != -1 && end > start {
		if records, err := decodeRecords([]byte(raw[start : end+1])); err == nil {
			return records, nil
		}
	}

	if member, ok := firstArrayMember([]byte(raw)); ok {
		if records, err := decodeRecords(member); err == nil {
			return records, nil
		}
	}

	return nil, fmt.Errorf("no JSON array of line items in model output")
}

// firstArrayMember walks a top-level JSON object token by token and returns
// its first array-valued member. A map decode would lose member order.
func firstArrayMember(raw []byte) (json.RawMessage, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, false
	}

	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, false
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		if bytes.HasPrefix(bytes.TrimSpace(value), []byte("[")) {
			return value, true
		}
	}
	return nil, false
}

func decodeRecords(blob []byte) ([]map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(blob))
	dec.UseNumber()

	var rawRecords []map[string]any
	if err := dec.Decode(&rawRecords); err != nil {
		return nil, err
	}

	out := make([]map[string]string, 0, len(rawRecords))
	for _, raw := range rawRecords {
		record := make(map[string]string, len(raw))
		for k, v := range raw {
			record[k] = stringifyValue(v)
		}
		out = append(out, record)
	}
	return out, nil
}

func stringifyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// recordToLineItem maps a raw record onto the fixed internal shape, resolving
// each logical field under the key spellings the model is known to emit.
func recordToLineItem(record map[string]string) internal.LineItem {
	return internal.LineItem{
		Invoice:     util.PickAlias(record, "invoice number", "invoice", "Invoice"),
		InvoiceDate: util.PickAlias(record, "invoice date", "Invoice Date"),
		Description: util.PickAlias(record, "description", "Description"),
		PartNumber:  util.PickAlias(record, "item/manufacturer part number", "part_number", "Part Number"),
		Brand:       util.PickAlias(record, "brand", "Brand"),
		Qty:         util.PickAlias(record, "quantity", "Quantity"),
		Price:       util.PickAlias(record, "price", "Price"),
		ExtPrice:    util.PickAlias(record, "extended price", "extended_price", "Ext. Price"),
	}
}
