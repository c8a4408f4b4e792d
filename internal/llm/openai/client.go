package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
	"github.com/joseph-ayodele/referral-intake/internal/llm"
)

const operation = "openai.chat_completions"

// ExtractFields implements llm.FieldStrategy using text-only chat/completions.
// Any failure is returned as an error; the caller owns the fallback.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (entity.FieldSet, []byte, error) {
	if !c.Available() {
		return entity.FieldSet{}, nil, ErrNoCredential
	}

	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.Text),
		"ext", constants.NormalizeExt(filepath.Ext(req.FileName)),
	)

	schema := llm.BuildReferralJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": llm.BuildUserPrompt(req)},
			{"role": "system", "content": llm.SchemaMessage(schema)},
		},
	}

	raw, err := c.chat(ctx, body)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.FieldSet{}, raw, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.FieldSet{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.FieldSet{}, raw, ErrNoChoices
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	content, err = c.conform(rid, schema, content)
	if err != nil {
		c.logger.Error("llm.extract.schema_validation_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.FieldSet{}, content, err
	}

	var out entity.FieldSet
	if err := json.Unmarshal(content, &out); err != nil {
		c.logger.Error("llm.extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.FieldSet{}, content, fmt.Errorf("unmarshal fields: %w", err)
	}
	out.Normalize()
	out.AIUsed = true

	// Values are PHI; log only counts.
	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"found", out.FoundCount(),
		"confidence", out.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

// conform validates content strictly, then retries after sanitizing and, unless
// StrictSchema is set, after filling absent keys.
func (c *Client) conform(rid string, schema map[string]any, content []byte) ([]byte, error) {
	err := llm.ValidateJSONAgainstSchema(schema, content)
	if err == nil {
		return content, nil
	}

	cleaned, dropped, sErr := llm.NormalizeAndSanitizeJSON(content, c.logger)
	if sErr != nil {
		return content, fmt.Errorf("sanitize failed: %w", sErr)
	}
	vErr := llm.ValidateJSONAgainstSchema(schema, cleaned)
	if vErr == nil {
		c.logger.Warn("llm.extract.sanitize_applied", "req_id", rid, "dropped", dropped)
		return cleaned, nil
	}
	if c.cfg.StrictSchema {
		return cleaned, fmt.Errorf("schema validation failed: %w", vErr)
	}

	filled, missing, fErr := llm.FillMissingFields(cleaned)
	if fErr != nil {
		return cleaned, fmt.Errorf("lenient fill failed: %w", fErr)
	}
	if err := llm.ValidateJSONAgainstSchema(schema, filled); err != nil {
		return filled, fmt.Errorf("schema validation failed: %w", err)
	}
	c.logger.Warn("llm.extract.lenient_fill_applied", "req_id", rid, "dropped", dropped, "filled", missing)
	return filled, nil
}

// chat posts to /chat/completions through the breaker when one is configured.
func (c *Client) chat(ctx context.Context, body map[string]any) ([]byte, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	var raw []byte
	call := func(ctx context.Context) error {
		b, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
		raw = b
		if err != nil {
			return fmt.Errorf("openai: %w", err)
		}
		return nil
	}
	if c.exec == nil {
		err := call(ctx)
		return raw, err
	}
	err := c.exec.Execute(ctx, operation, call, classifyError)
	return raw, err
}
