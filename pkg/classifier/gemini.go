package classifier

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

const systemPrompt = "You are a document analysis service. You classify business documents and extract structured data from them. You must answer with a single valid JSON object and nothing else."

const userPrompt = `Classify the attached document as exactly one of:
- "FACTURA": an invoice, bill or receipt.
- "INFORMACION": any other informational document.

Return a JSON object with these keys:
"classification": "FACTURA" or "INFORMACION".
For FACTURA fill: "client_name", "client_address", "provider_name", "provider_address",
"invoice_number", "invoice_date" (ISO 8601 when possible), "total_amount" (number),
"products" (array of {"name", "quantity", "unit_price", "line_total"} with numeric values).
For INFORMACION fill: "description" (one sentence), "summary" (a short paragraph) and
"sentiment" ("positivo", "negativo" or "neutral").
Use null for anything you cannot find. Do not invent values.`

// Gemini classifies documents with a Vertex AI Gemini model.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGemini(ctx context.Context, projectID, region, model string) (*Gemini, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("gemini: projectID and region cannot be empty")
	}
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	m := client.GenerativeModel(model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	return &Gemini{client: client, model: m}, nil
}

// Classify sends the document inline and decodes the JSON answer.
func (g *Gemini) Classify(ctx context.Context, in Input) (*Result, error) {
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrUnsupported)
	}
	resp, err := g.model.GenerateContent(ctx,
		genai.Blob{MIMEType: in.MIMEType(), Data: in.Data},
		genai.Text(userPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return Decode(responseText(resp))
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
