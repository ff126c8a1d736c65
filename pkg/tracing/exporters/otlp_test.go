package exporters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	t.Run("parses comma separated pairs", func(t *testing.T) {
		headers := ParseHeaders("api-key=abc, tenant = clover")
		assert.Equal(t, map[string]string{"api-key": "abc", "tenant": "clover"}, headers)
	})

	t.Run("skips malformed pairs", func(t *testing.T) {
		headers := ParseHeaders("novalue,=x,ok=1")
		assert.Equal(t, map[string]string{"ok": "1"}, headers)
	})
}

func TestNewOTLPExporter_UnsupportedProtocol(t *testing.T) {
	_, err := NewOTLPExporter(context.Background(), OTLPConfig{Protocol: "udp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported otlp protocol")
}
