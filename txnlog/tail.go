package txnlog

import (
	"bufio"
	"encoding/json"
	"os"
)

// TailLines returns the last n parsed JSON lines of the transaction
// log file at path, oldest first. A missing file yields an empty
// slice, not an error (nothing has been logged yet). Malformed lines
// are skipped rather than failing the whole read, since this is
// read-only introspection, not a correctness-critical path.
func TailLines(path string, n int) ([]map[string]any, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]map[string]any, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err != nil {
			continue
		}
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ring, nil
}
