package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogEmitter writes one line per event.
//
// Text mode:
//
//	[node_completed] runID=r1 wave=0 nodeID=fetch type=source-fetch meta={"duration_ms":12}
//
// JSON mode writes JSON lines with the same fields.
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter returns a LogEmitter writing to writer, or stdout when nil.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit writes event as one line, either human readable text or JSON.
//
// Writes are serialized so lines from concurrent nodes never interleave.
//
// Example JSON output:
//
//	{"runID":"run-001","wave":1,"msg":"wave_started","meta":{"nodes":"gen"}}
//	{"runID":"run-001","wave":1,"nodeID":"gen","nodeType":"text-generate","msg":"node_completed","meta":{"duration_ms":412}}
func (l *LogEmitter) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		RunID    string                 `json:"runID"`
		Wave     int                    `json:"wave"`
		NodeID   string                 `json:"nodeID,omitempty"`
		NodeType string                 `json:"nodeType,omitempty"`
		Msg      string                 `json:"msg"`
		Meta     map[string]interface{} `json:"meta,omitempty"`
	}{event.RunID, event.Wave, event.NodeID, event.NodeType, event.Msg, event.Meta})
	if err != nil {
		fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	fmt.Fprintf(l.writer, "[%s] runID=%s wave=%d", event.Msg, event.RunID, event.Wave)
	if event.NodeID != "" {
		fmt.Fprintf(l.writer, " nodeID=%s type=%s", event.NodeID, event.NodeType)
	}
	if len(event.Meta) > 0 {
		if metaJSON, err := json.Marshal(event.Meta); err == nil {
			fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}
	fmt.Fprint(l.writer, "\n")
}
