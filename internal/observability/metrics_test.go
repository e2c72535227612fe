package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/danmuck/edgelink/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("monitor", "GET", "/health", 200, 12*time.Millisecond)
	ChannelOpened()
	ChannelClosed()
}

func TestFrameCounters(t *testing.T) {
	testlog.Start(t)
	received := testutil.ToFloat64(framesReceived)
	dropped := testutil.ToFloat64(framesDropped)
	errs := testutil.ToFloat64(frameErrors.WithLabelValues("checksum_low"))
	read := testutil.ToFloat64(bytesRead)

	RecordFrameReceived(0)
	RecordFrameReceived(3)
	RecordFrameError("checksum_low")
	RecordBytesRead(16)

	if got := testutil.ToFloat64(framesReceived) - received; got != 2 {
		t.Fatalf("frames_received delta=%v", got)
	}
	if got := testutil.ToFloat64(framesDropped) - dropped; got != 3 {
		t.Fatalf("frames_dropped delta=%v", got)
	}
	if got := testutil.ToFloat64(frameErrors.WithLabelValues("checksum_low")) - errs; got != 1 {
		t.Fatalf("frame_errors delta=%v", got)
	}
	if got := testutil.ToFloat64(bytesRead) - read; got != 16 {
		t.Fatalf("bytes_read delta=%v", got)
	}
}
