package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"swapwatch/internal/model"
)

// JsonlStorage writes swap events to a JSONL file.
type JsonlStorage struct {
	path       string
	appendMode bool

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// NewJsonlStorage returns a sink for path. The file is opened on first write;
// appendMode keeps existing content, otherwise the file is truncated.
func NewJsonlStorage(path string, appendMode bool) *JsonlStorage {
	return &JsonlStorage{path: path, appendMode: appendMode}
}

func (s *JsonlStorage) open() error {
	if s.file != nil {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if s.appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(s.path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	s.file = file
	s.writer = bufio.NewWriter(file)
	return nil
}

// PutEvents appends a batch of events as JSON lines and flushes.
func (s *JsonlStorage) PutEvents(events []model.SwapEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.open(); err != nil {
		return err
	}

	for _, event := range events {
		line, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal swap event: %w", err)
		}
		if _, err := s.writer.Write(line); err != nil {
			return fmt.Errorf("write swap event: %w", err)
		}
		if err := s.writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

func (s *JsonlStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	flushErr := s.writer.Flush()
	closeErr := s.file.Close()
	s.file, s.writer = nil, nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
