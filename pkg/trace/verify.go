package trace

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// VerifyResult is the outcome of verifying a transcript.
type VerifyResult struct {
	EventCount int
	Sessions   int
	Requests   int
	Responses  int
	Valid      bool
	BrokenAt   int // line number of the first bad event, -1 if none
	Error      string
}

// VerifyFile verifies a transcript file.
func VerifyFile(path string) (*VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript file: %w", err)
	}
	defer f.Close()
	return Verify(f)
}

// Verify checks every session in a transcript: the hash chain, sequence
// numbers, and that each request is answered by exactly one response
// before the next request.
func Verify(r io.Reader) (*VerifyResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	res := &VerifyResult{Valid: true, BrokenAt: -1}
	broken := func(line int, format string, args ...any) (*VerifyResult, error) {
		res.Valid = false
		res.BrokenAt = line
		res.Error = fmt.Sprintf("line %d: ", line) + fmt.Sprintf(format, args...)
		return res, nil
	}

	var (
		session     string
		prevHash    string
		seq         int
		outstanding bool
	)
	line := 0
	for scanner.Scan() {
		raw := scanner.Bytes()
		line++
		if len(raw) == 0 {
			continue
		}
		res.EventCount++

		var evt Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			return broken(line, "invalid JSON: %v", err)
		}

		if evt.Type == EventSessionStart || evt.SessionID != session {
			if outstanding {
				return broken(line, "session %s ended with an unanswered request", session)
			}
			if evt.Seq != 1 || evt.PrevHash != genesisHash {
				return broken(line, "session %s does not start a new chain", evt.SessionID)
			}
			session = evt.SessionID
			seq = 0
			res.Sessions++
		} else if evt.PrevHash != prevHash {
			return broken(line, "prev_hash mismatch")
		}
		if evt.Seq != seq+1 {
			return broken(line, "seq %d follows %d", evt.Seq, seq)
		}
		seq = evt.Seq

		switch evt.Type {
		case EventRequest:
			if outstanding {
				return broken(line, "request before previous response")
			}
			outstanding = true
			res.Requests++
		case EventResponse:
			if !outstanding {
				return broken(line, "response without request")
			}
			outstanding = false
			res.Responses++
		case EventSessionEnd:
			if outstanding {
				return broken(line, "session ended with an unanswered request")
			}
		}

		h := sha256.Sum256(raw)
		prevHash = hex.EncodeToString(h[:])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	if outstanding {
		return broken(line, "transcript ends with an unanswered request")
	}
	return res, nil
}
