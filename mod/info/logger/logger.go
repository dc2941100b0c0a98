package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

/*
	corsgate Logger

	System log of the proxy. Lines go to STDOUT and, when a log
	folder is given, to a per-month file "<prefix>_<year>-<month>.log"
	in that folder. The file is switched on the first write of a new month.
*/

type Logger struct {
	Prefix         string //Prefix for log files
	LogFolder      string //Folder to store the log file, empty for STDOUT only
	CurrentLogFile string //Current writing filename

	mu   sync.Mutex
	file *os.File
	out  *log.Logger      //Writes into file, nil when no file is open
	now  func() time.Time //Clock used for file switching
}

// Create a new logger that log to files
func NewLogger(logFilePrefix string, logFolder string) (*Logger, error) {
	if err := os.MkdirAll(logFolder, 0775); err != nil {
		return nil, err
	}

	thisLogger := Logger{
		Prefix:    logFilePrefix,
		LogFolder: logFolder,
		now:       time.Now,
	}
	if err := thisLogger.openFile(thisLogger.filepathFor(thisLogger.now())); err != nil {
		return nil, err
	}
	return &thisLogger, nil
}

// Create a fmt logger that only log to STDOUT
func NewFmtLogger() *Logger {
	thisLogger := Logger{
		now: time.Now,
	}
	return &thisLogger
}

func (l *Logger) filepathFor(t time.Time) string {
	year, month, _ := t.Date()
	return filepath.Join(l.LogFolder, l.Prefix+"_"+strconv.Itoa(year)+"-"+strconv.Itoa(int(month))+".log")
}

// openFile switch the output to the given file. Caller must hold l.mu
// or be the constructor
func (l *Logger) openFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if l.file != nil {
		l.file.Close()
	}
	l.file = f
	l.out = log.New(f, "", 0)
	l.CurrentLogFile = path
	return nil
}

// PrintAndLog will log the message to file and print the log to STDOUT
func (l *Logger) PrintAndLog(title string, message string, originalError error) {
	go l.Log(title, message, originalError, true)
}

// Println is a fast snap-in replacement for log.Println
func (l *Logger) Println(v ...interface{}) {
	message := fmt.Sprint(v...)
	go l.Log("internal", message, nil, true)
}

// Log write one line synchronously. Lines always reach STDOUT when no
// log file is open
func (l *Logger) Log(title string, message string, originalError error, copyToSTDOUT bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	line := formatLine(now, title, message, originalError)
	l.rotate(now)
	if l.out == nil || copyToSTDOUT {
		fmt.Println(line)
	}
	if l.out != nil {
		l.out.Println(line)
	}
}

// writeRaw append a preformatted line to the log file only
func (l *Logger) writeRaw(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rotate(l.now())
	if l.out != nil {
		l.out.Println(line)
	}
}

func formatLine(t time.Time, title string, message string, originalError error) string {
	timestamp := t.Format("2006-01-02 15:04:05.000000")
	if originalError == nil {
		return "[" + timestamp + "] [" + title + "] [system:info] " + message
	}
	return "[" + timestamp + "] [" + title + "] [system:error] " + message + ": " + originalError.Error()
}

// rotate move to the file of the current month. Caller must hold l.mu
func (l *Logger) rotate(now time.Time) {
	if l.file == nil {
		return
	}
	expected := l.filepathFor(now)
	if expected == l.CurrentLogFile {
		return
	}
	if err := l.openFile(expected); err != nil {
		log.Println("Unable to create new log. Logging is disabled: ", err.Error())
		l.file.Close()
		l.file = nil
		l.out = nil
	}
}

func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	l.out = nil
}
