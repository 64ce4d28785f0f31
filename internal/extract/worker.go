package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/keystone-estates/ingest-cli/internal/config"
	"github.com/keystone-estates/ingest-cli/internal/model"
)

// workerMessage is the wire format between the worker process and the
// orchestrator.
type workerMessage struct {
	Success bool                    `json:"success"`
	Result  *model.ExtractionResult `json:"result,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

// EncodeWorkerResult writes the worker-side message for a finished
// extraction. Called by the hidden extract-worker command.
func EncodeWorkerResult(result *model.ExtractionResult, extractErr error) ([]byte, error) {
	msg := workerMessage{Success: extractErr == nil, Result: result}
	if extractErr != nil {
		msg.Error = extractErr.Error()
	}
	return json.Marshal(msg)
}

// Worker invokes extraction in an isolated child process: the binary's
// hidden extract-worker command runs the recognition tools and prints one
// JSON message on stdout. A crash or hang in the tools surfaces here as a
// structured error, never as a fault in the orchestrator process.
type Worker struct {
	bin     string
	timeout time.Duration
}

// NewWorker creates a Worker from config. When cfg.WorkerBin is empty the
// current executable is used.
func NewWorker(cfg config.ExtractConfig) (*Worker, error) {
	bin := cfg.WorkerBin
	if bin == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, eris.Wrap(err, "extract: resolve executable")
		}
		bin = exe
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Worker{bin: bin, timeout: timeout}, nil
}

// Extract runs one extraction in a child worker process.
func (w *Worker) Extract(ctx context.Context, path string) (*model.ExtractionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, w.bin, "extract-worker", path)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "extract: worker failed for %s: %s", path, stderr.String())
	}

	var msg workerMessage
	if err := json.Unmarshal(stdout.Bytes(), &msg); err != nil {
		return nil, eris.Wrapf(err, "extract: decode worker output for %s", path)
	}
	if !msg.Success {
		return nil, eris.Errorf("extract: worker error for %s: %s", path, msg.Error)
	}
	if msg.Result == nil {
		return nil, eris.Errorf("extract: worker returned no result for %s", path)
	}

	zap.L().Debug("extract: worker complete",
		zap.String("file", path),
		zap.String("category", msg.Result.Category),
	)
	return msg.Result, nil
}
