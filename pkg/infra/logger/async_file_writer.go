package logger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const flushInterval = 2 * time.Second

// AsyncFileWriter buffers log lines through a channel so the logging call
// never blocks on disk. Lines are dropped when the channel is full.
type AsyncFileWriter struct {
	writer  *bufio.Writer
	file    *os.File
	mu      sync.Mutex
	logChan chan []byte
	done    chan struct{}
}

func NewAsyncFileWriter(logFile string, bufferSize int) (*AsyncFileWriter, error) {
	file, err := os.OpenFile(filepath.Clean(logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}

	aw := &AsyncFileWriter{
		writer:  bufio.NewWriterSize(file, bufferSize),
		file:    file,
		logChan: make(chan []byte, 1000),
		done:    make(chan struct{}),
	}
	go aw.drain()
	return aw, nil
}

func (aw *AsyncFileWriter) Write(p []byte) (n int, err error) {
	select {
	case aw.logChan <- append([]byte{}, p...):
		return len(p), nil
	default:
		return 0, nil
	}
}

func (aw *AsyncFileWriter) drain() {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case line := <-aw.logChan:
			aw.mu.Lock()
			if _, err := aw.writer.Write(line); err != nil {
				fmt.Println("error writing log data to file", err)
			}
			aw.mu.Unlock()

		case <-ticker.C:
			aw.mu.Lock()
			_ = aw.writer.Flush()
			aw.mu.Unlock()

		case <-aw.done:
			aw.mu.Lock()
			_ = aw.writer.Flush()
			aw.mu.Unlock()
			return
		}
	}
}

func (aw *AsyncFileWriter) Close() {
	close(aw.done)
	_ = aw.file.Close()
}

// ConsoleHook mirrors every entry to stdout alongside the file output.
type ConsoleHook struct{}

func NewConsoleHook() *ConsoleHook {
	return &ConsoleHook{}
}

func (h *ConsoleHook) Fire(entry *logrus.Entry) error {
	line, err := entry.Logger.Formatter.Format(entry)
	if err != nil {
		return err
	}
	fmt.Print(string(line))
	return nil
}

func (h *ConsoleHook) Levels() []logrus.Level {
	return logrus.AllLevels
}
