// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilCollectorIsSafe(t *testing.T) {
	var m *Collector
	m.RecordParseWarnings(3)
	m.RecordSecretsRead("ok")
	m.RecordEgress("")
	m.RecordEgress("host_not_allowed")
	m.ExecSessionStarted()
	m.ExecOutputBuffered(10)
	m.ExecFrameDropped()
	m.ExecSessionFinished("ok", 10)
}

func TestRecordEgress(t *testing.T) {
	m := NewCollector()
	m.RecordEgress("")
	m.RecordEgress("")
	m.RecordEgress("raw_value")

	if got := testutil.ToFloat64(m.EgressRequests.WithLabelValues("allowed")); got != 2 {
		t.Errorf("allowed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EgressRequests.WithLabelValues("blocked")); got != 1 {
		t.Errorf("blocked = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EgressBlocks.WithLabelValues("raw_value")); got != 1 {
		t.Errorf("blocks{raw_value} = %v, want 1", got)
	}
}

func TestExecSessionAccounting(t *testing.T) {
	m := NewCollector()
	m.ExecSessionStarted()
	m.ExecSessionStarted()
	m.ExecOutputBuffered(100)
	m.ExecOutputBuffered(50)
	m.ExecSessionFinished("ok", 100)

	if got := testutil.ToFloat64(m.ExecActiveSessions); got != 1 {
		t.Errorf("active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ExecBufferedBytes); got != 50 {
		t.Errorf("buffered = %v, want 50", got)
	}
	if got := testutil.ToFloat64(m.ExecResults.WithLabelValues("ok")); got != 1 {
		t.Errorf("results{ok} = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewCollector()
	m.ExecFrameDropped()

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(recorder.Result().Body)
	if !strings.Contains(string(body), "gondolin_exec_dropped_frames_total 1") {
		t.Errorf("metrics output missing dropped frames counter:\n%s", body)
	}
}
