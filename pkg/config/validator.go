package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate provider config
	if c.Provider.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "provider.api_key",
			Message: "API key is required",
		})
	}

	if c.Provider.BaseURL != "" {
		if _, err := url.Parse(c.Provider.BaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "provider.base_url",
				Message: "invalid provider base URL",
			})
		}
	}

	// Validate index config
	switch c.Index.Engine {
	case "pgvector":
		if c.Index.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "index.url",
				Message: "database URL is required for the pgvector engine",
			})
		}
	case "memory":
	default:
		errors = append(errors, ValidationError{
			Field:   "index.engine",
			Message: fmt.Sprintf("unknown engine %q, expected pgvector or memory", c.Index.Engine),
		})
	}

	if c.Index.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	// Validate ingest config
	if c.Ingest.MaxChars < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.max_chars",
			Message: "max_chars must be positive",
		})
	}

	if c.Ingest.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.concurrency",
			Message: "concurrency must be positive",
		})
	}

	if c.Ingest.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "ingest.rate_limit",
			Message: "rate_limit must not be negative",
		})
	}

	if c.Ingest.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate retrieval config
	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	return errors
}
