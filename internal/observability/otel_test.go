package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHeaders(t *testing.T) {
	assert.Nil(t, parseHeaders(""))
	assert.Nil(t, parseHeaders("novalue=,=nokey,junk"))
	assert.Equal(t, map[string]string{"api-key": "abc", "x-tenant": "ops"},
		parseHeaders(" api-key = abc ,x-tenant=ops,broken"))
}

func TestLoadOtelConfig(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLER_RATIO", "7")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")

	cfg := LoadOtelConfig("frontline", "test")
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 1.0, cfg.SampleRatio)
	assert.Equal(t, "collector:4318", cfg.Endpoint)
	assert.Equal(t, "frontline", cfg.ServiceName)
}
