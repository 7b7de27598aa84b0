package metrics

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nci/terrain/utils"
)

type Logger interface {
	Log(info *RunInfo)
	Close() error
}

type StdoutLogger struct{}

func NewStdoutLogger() *StdoutLogger {
	return &StdoutLogger{}
}

func (l *StdoutLogger) Log(info *RunInfo) {
	infoStr, err := info.ToJSON()
	if err != nil {
		log.Printf("StdoutLogger: error: %v", err)
		return
	}
	log.Print(infoStr)
}

func (l *StdoutLogger) Close() error {
	return nil
}

const (
	defaultQueueSize      = 64
	defaultMaxLogFileSize = 64 * 1024 * 1024
	defaultMaxLogFiles    = 10
	logFileName           = "metrics.log"
)

// FileLogger appends run records to LogDir/metrics.log from a single
// writer goroutine. Once the file reaches MaxLogFileSize it is moved to
// metrics.log.N; when MaxLogFiles rotated files exist the oldest is
// overwritten.
type FileLogger struct {
	Queue          chan *RunInfo
	LogDir         string
	MaxLogFileSize int64
	MaxLogFiles    int
	Verbose        bool

	wg sync.WaitGroup
}

func NewFileLogger(logDir string, maxLogFileSize int64, maxLogFiles int, verbose bool) (*FileLogger, error) {
	if maxLogFileSize <= 0 {
		maxLogFileSize = defaultMaxLogFileSize
	}
	if maxLogFiles <= 0 {
		maxLogFiles = defaultMaxLogFiles
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	l := &FileLogger{
		Queue:          make(chan *RunInfo, defaultQueueSize),
		LogDir:         logDir,
		MaxLogFileSize: maxLogFileSize,
		MaxLogFiles:    maxLogFiles,
		Verbose:        verbose,
	}
	l.wg.Add(1)
	go l.writer()
	return l, nil
}

func (l *FileLogger) Log(info *RunInfo) {
	l.Queue <- info
}

// Close flushes queued records. Log must not be called afterwards.
func (l *FileLogger) Close() error {
	close(l.Queue)
	l.wg.Wait()
	return nil
}

func (l *FileLogger) writer() {
	defer l.wg.Done()

	for info := range l.Queue {
		infoStr, err := info.ToJSON()
		if err != nil {
			log.Printf("FileLogger: ToJSON error: %v", err)
			continue
		}

		l.rotate()
		f, err := os.OpenFile(filepath.Join(l.LogDir, logFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("FileLogger: open error: %v", err)
			continue
		}
		if _, err := f.WriteString(infoStr); err != nil {
			log.Printf("FileLogger: write error: %v", err)
		}
		f.Close()
	}
}

func (l *FileLogger) rotate() {
	current := filepath.Join(l.LogDir, logFileName)
	st, err := os.Stat(current)
	if err != nil || st.Size() < l.MaxLogFileSize {
		return
	}

	target := ""
	for i := 0; i < l.MaxLogFiles; i++ {
		p := filepath.Join(l.LogDir, fmt.Sprintf("%s.%d", logFileName, i))
		if _, err := os.Stat(p); os.IsNotExist(err) {
			target = p
			break
		}
	}

	if len(target) == 0 {
		target = l.oldestRotated()
		if l.Verbose {
			log.Printf("FileLogger: maximum number of log files reached, overwriting %s", target)
		}
	}

	if err := os.Rename(current, target); err != nil {
		log.Printf("FileLogger: log rotation error: %v", err)
		return
	}
	if l.Verbose {
		log.Printf("FileLogger: log file rotated: %s", target)
	}
}

func (l *FileLogger) oldestRotated() string {
	oldest := filepath.Join(l.LogDir, logFileName+".0")
	files, err := ioutil.ReadDir(l.LogDir)
	if err != nil {
		return oldest
	}

	oldestTime := time.Now()
	for _, file := range files {
		if !file.Mode().IsRegular() || !strings.HasPrefix(file.Name(), logFileName+".") {
			continue
		}
		if file.ModTime().Before(oldestTime) {
			oldest = filepath.Join(l.LogDir, file.Name())
			oldestTime = file.ModTime()
		}
	}
	return oldest
}

// NewLogger returns a FileLogger when a log directory is configured,
// a StdoutLogger in verbose mode and nil otherwise.
func NewLogger(cfg utils.MetricsConfig, verbose bool) (Logger, error) {
	if len(cfg.LogDir) > 0 {
		return NewFileLogger(cfg.LogDir, cfg.MaxLogFileSize, cfg.MaxLogFiles, verbose)
	}
	if verbose {
		return NewStdoutLogger(), nil
	}
	return nil, nil
}
