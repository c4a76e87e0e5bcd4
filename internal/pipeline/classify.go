package pipeline

import (
	"context"
	"fmt"

	"tariffbench/internal"
	"tariffbench/internal/inference"
	"tariffbench/internal/util"
)

const classificationSystemPrompt = "You are a customs tariff specialist."

func classificationPrompt(item internal.LineItem) string {
	return "Given the following item description and part number, predict the most likely 6-digit HTS " +
		"(Harmonized Tariff Schedule) code for US import, based on standard customs practices. " +
		"Respond with ONLY the 6-digit code (no words).\n\n" +
		fmt.Sprintf("Description: %s\n", item.Description) +
		fmt.Sprintf("Part Number: %s", item.PartNumber)
}

// PredictHTSCode asks the model for a 6-digit HTS code for one line item and
// normalizes whatever came back. An empty code is a valid outcome; only a
// failed model call is an error.
func PredictHTSCode(ctx context.Context, completer inference.Completer, item internal.LineItem) (string, error) {
	raw, err := completer.Complete(ctx, classificationSystemPrompt, classificationPrompt(item))
	if err != nil {
		return "", fmt.Errorf("classify line item: %w", err)
	}
	return util.ExtractHTSCode(raw), nil
}
