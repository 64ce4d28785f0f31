package pipeline

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/keystone-estates/ingest-cli/internal/model"
)

// Notifier delivers one-way progress messages to the host. Delivery is
// best-effort by contract: implementations must never block the pipeline,
// and the host must not expect acknowledgment.
type Notifier interface {
	Notify(p model.Progress)
}

// NopNotifier discards all progress messages.
type NopNotifier struct{}

func (NopNotifier) Notify(model.Progress) {}

// WriterNotifier emits newline-delimited JSON messages, the wire format the
// host process reads from the ingestion child's stdout. Encode errors are
// swallowed; a host that stopped reading must not stall the run.
type WriterNotifier struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriterNotifier creates a WriterNotifier on w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{enc: json.NewEncoder(w)}
}

func (n *WriterNotifier) Notify(p model.Progress) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_ = n.enc.Encode(p)
}

// ChanNotifier buffers progress messages on a small channel for in-process
// consumers. Messages are dropped when the buffer is full.
type ChanNotifier struct {
	ch chan model.Progress
}

// NewChanNotifier creates a ChanNotifier with the given buffer size.
func NewChanNotifier(buffer int) *ChanNotifier {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChanNotifier{ch: make(chan model.Progress, buffer)}
}

func (n *ChanNotifier) Notify(p model.Progress) {
	select {
	case n.ch <- p:
	default:
	}
}

// C returns the receive side of the notifier.
func (n *ChanNotifier) C() <-chan model.Progress {
	return n.ch
}
