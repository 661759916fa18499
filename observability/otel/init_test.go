package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization=Bearer x , bad, =skip,tenant=vault")
	require.Equal(t, map[string]string{"authorization": "Bearer x", "tenant": "vault"}, headers)
}

func TestConfigFromEnvDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg := ConfigFromEnv("vaultd", "test")
	require.False(t, cfg.Traces)
	require.False(t, cfg.Metrics)

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestConfigFromEnvEnabled(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	cfg := ConfigFromEnv("vaultd", "prod")
	require.True(t, cfg.Traces)
	require.True(t, cfg.Insecure)
	require.Equal(t, "collector:4318", cfg.Endpoint)
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestConfigFromEnvSdkDisabled(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_SDK_DISABLED", "true")
	cfg := ConfigFromEnv("vaultd", "prod")
	require.False(t, cfg.Traces)
	require.False(t, cfg.Metrics)
	require.NotEmpty(t, cfg.InstanceID)
}

func TestSamplerRatio(t *testing.T) {
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	cfg := ConfigFromEnv("vaultd", "prod")
	require.Equal(t, 0.25, cfg.SampleRatio)
	require.Contains(t, cfg.sampler().Description(), "TraceIDRatioBased{0.25}")

	cfg.SampleRatio = 0
	require.Contains(t, cfg.sampler().Description(), "AlwaysOnSampler")
}

func TestResourceCarriesServiceIdentity(t *testing.T) {
	cfg := Config{ServiceName: "vaultd", Environment: "test", Version: "1.2.3", InstanceID: "abc"}
	res, err := cfg.resource()
	require.NoError(t, err)
	found := map[string]string{}
	for _, kv := range res.Attributes() {
		found[string(kv.Key)] = kv.Value.Emit()
	}
	require.Equal(t, "vaultd", found["service.name"])
	require.Equal(t, "1.2.3", found["service.version"])
	require.Equal(t, "abc", found["service.instance.id"])
}
