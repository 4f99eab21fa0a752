package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()
	m.RecordIntent("build", "success", 2*time.Second)
	m.RecordIntent("build", "success", time.Second)
	m.RecordIntent("test", "tool_failure", time.Second)
	m.RecordPipeline("build_test_run", "aborted")
	m.RecordSelfUpdate("rolled_back")
	m.RecordBusy()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IntentsTotal.WithLabelValues("build", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntentsTotal.WithLabelValues("test", "tool_failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelinesTotal.WithLabelValues("build_test_run", "aborted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SelfUpdatesTotal.WithLabelValues("rolled_back")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BusyRejections))
	assert.Equal(t, 2, testutil.CollectAndCount(m.IntentDuration))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RecordIntent("build", "success", time.Second)

	path := filepath.Join(t.TempDir(), "textfile", "devterm.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `devterm_intents_total{intent="build",status="success"} 1`)
	assert.Contains(t, string(data), "devterm_intent_duration_seconds_bucket")
}
