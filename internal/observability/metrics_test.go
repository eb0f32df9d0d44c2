package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/xferctl/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordFrameSent("send_file(1028)")
	RecordFrameReceived("file_received_crc_ok(2103)")
	RecordTransferAttempt()
	RecordOutcome("success", "register", 12*time.Millisecond)
}

func TestWriteTextfile(t *testing.T) {
	testlog.Start(t)
	RecordTransferAttempt()
	path := filepath.Join(t.TempDir(), "xferctl.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(raw), "xferctl_transfer_attempts_total") {
		t.Fatalf("missing attempts metric in %q", raw)
	}
}
