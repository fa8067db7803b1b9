package tracing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/tasknotify/internal/tracing"
)

func TestNewStdoutProvider(t *testing.T) {
	tests := map[string]struct {
		config tracing.ProviderConfig
		expErr bool
	}{
		"missing writer should fail": {
			config: tracing.ProviderConfig{},
			expErr: true,
		},
		"a writer should be enough": {
			config: tracing.ProviderConfig{Writer: &bytes.Buffer{}},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			tp, err := tracing.NewStdoutProvider(test.config)
			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, tracing.Shutdown(context.Background(), tp))
		})
	}
}

func TestStdoutProviderWritesSpans(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	var buf bytes.Buffer
	tp, err := tracing.NewStdoutProvider(tracing.ProviderConfig{Writer: &buf, ServiceName: "test-svc"})
	require.NoError(err)

	_, span := tp.Tracer(tracing.InstrumentationName).Start(context.Background(), "task.run")
	span.End()
	require.NoError(tracing.Shutdown(context.Background(), tp))

	var got map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &got))
	assert.Equal("task.run", got["Name"])
	assert.Contains(buf.String(), "test-svc")
}

func TestShutdownNil(t *testing.T) {
	assert.NoError(t, tracing.Shutdown(context.Background(), nil))
}
