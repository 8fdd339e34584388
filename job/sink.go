package job

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Level string

const (
	DEBUG Level = "DEBUG"
	INFO  Level = "INFO"
	WARN  Level = "WARN"
	ERROR Level = "ERROR"
)

type Entry struct {
	Timestamp time.Time
	Level     Level
	Run       string
	Message   string
}

// String formats the entry as a run log line: <ISO-8601 timestamp> <LEVEL> <message>, with
// the message prefixed by the run ID if the entry has one.
func (e Entry) String() string {
	if e.Run != "" {
		return fmt.Sprintf("%v %v [%v] %v", e.Timestamp.Format(time.RFC3339), e.Level, e.Run, e.Message)
	}

	return fmt.Sprintf("%v %v %v", e.Timestamp.Format(time.RFC3339), e.Level, e.Message)
}

// Sink is an append-only destination for run log entries.
type Sink interface {
	Append(Entry) error
}

// FileSink appends entries to a text file, one line per entry.
type FileSink struct {
	file *os.File
	sync.Mutex
}

func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return nil, err
	}

	return &FileSink{file: f}, nil
}

func (s *FileSink) Append(e Entry) error {
	s.Lock()
	defer s.Unlock()

	_, err := fmt.Fprintln(s.file, e.String())

	return err
}

func (s *FileSink) Close() error {
	return s.file.Close()
}

// MemorySink keeps entries in memory.
type MemorySink struct {
	Entries []Entry
}

func (s *MemorySink) Append(e Entry) error {
	s.Entries = append(s.Entries, e)

	return nil
}

func (s *MemorySink) Lines() []string {
	lines := []string{}
	for _, e := range s.Entries {
		lines = append(lines, e.String())
	}

	return lines
}

// ConsoleSink echoes entries through the standard logger.
type ConsoleSink struct {
}

func (s ConsoleSink) Append(e Entry) error {
	log.Printf("%-5s %s", e.Level, e.Message)

	return nil
}

// Tee appends every entry to each of its sinks.
type Tee []Sink

func (t Tee) Append(e Entry) error {
	var errs []error
	for _, s := range t {
		if s != nil {
			if err := s.Append(e); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}
