// Package log provides the leveled logger used across py2i. Client facing
// libraries log through StderrLog so the verbosity can be controlled with a
// single --loglevel flag.
package log

import (
	"fmt"
	"io"
	"os"

	"k8s.io/klog/v2"
)

// Logger is a simple interface that is roughly equivalent to klog.
type Logger interface {
	Is(level int32) bool
	V(level int32) VerboseLogger
	Infof(format string, args ...interface{})
	Info(args ...interface{})
	Warningf(format string, args ...interface{})
	Warning(args ...interface{})
	Errorf(format string, args ...interface{})
	Error(args ...interface{})
	Fatalf(format string, args ...interface{})
	Fatal(args ...interface{})
}

// VerboseLogger is roughly equivalent to klog's Verbose.
type VerboseLogger interface {
	Infof(format string, args ...interface{})
	Info(args ...interface{})
}

// ToFile creates a logger that will log any items at level or below to file,
// and defer any other output to klog (no matter what the level is).
func ToFile(w io.Writer, level int32) Logger {
	return &FileLogger{w, level}
}

var (
	// None implements the Logger interface but does nothing with the log output.
	None Logger = discard{}

	// StderrLog implements the Logger interface for stderr.
	StderrLog = ToFile(os.Stderr, 2)
)

// discard is a Logger that outputs nothing.
type discard struct{}

// Is returns whether the current logging level is greater than or equal to the parameter.
func (discard) Is(level int32) bool { return false }

// V will returns a logger which will discard output if the specified level is
// greater than the current logging level.
func (discard) V(level int32) VerboseLogger { return discard{} }

func (discard) Infof(format string, args ...interface{})    {}
func (discard) Info(args ...interface{})                    {}
func (discard) Warningf(format string, args ...interface{}) {}
func (discard) Warning(args ...interface{})                 {}
func (discard) Errorf(format string, args ...interface{})   {}
func (discard) Error(args ...interface{})                   {}
func (discard) Fatalf(format string, args ...interface{})   { os.Exit(1) }
func (discard) Fatal(args ...interface{})                   { os.Exit(1) }

// FileLogger logs the provided messages at level or below to the writer, or
// delegates to klog.
type FileLogger struct {
	w     io.Writer
	level int32
}

// Is returns whether the current logging level is greater than or equal to the parameter.
func (f *FileLogger) Is(level int32) bool {
	return bool(klog.V(klog.Level(level)).Enabled())
}

// V will returns a logger which will discard output if the specified level is
// greater than the current logging level.
func (f *FileLogger) V(level int32) VerboseLogger {
	// Is the loglevel set verbose enough to accept the forthcoming log statement
	if !klog.V(klog.Level(level)).Enabled() {
		return None
	}
	// If the log level is below the file level, write to the file.
	if level <= f.level {
		return &FileLogger{f.w, f.level}
	}
	return klog.V(klog.Level(level))
}

// Infof records an info log entry.
func (f *FileLogger) Infof(format string, args ...interface{}) {
	fmt.Fprintf(f.w, format, args...)
	fmt.Fprintln(f.w)
}

// Info records an info log entry.
func (f *FileLogger) Info(args ...interface{}) {
	fmt.Fprint(f.w, args...)
	fmt.Fprintln(f.w)
}

// Warningf records an warning log entry.
func (f *FileLogger) Warningf(format string, args ...interface{}) {
	klog.WarningDepth(1, fmt.Sprintf(format, args...))
}

// Warning records an warning log entry.
func (f *FileLogger) Warning(args ...interface{}) {
	klog.WarningDepth(1, fmt.Sprint(args...))
}

// Errorf records an error log entry.
func (f *FileLogger) Errorf(format string, args ...interface{}) {
	klog.ErrorDepth(1, fmt.Sprintf(format, args...))
}

// Error records an error log entry.
func (f *FileLogger) Error(args ...interface{}) {
	klog.ErrorDepth(1, fmt.Sprint(args...))
}

// Fatalf records a fatal log entry and terminates the program.
func (f *FileLogger) Fatalf(format string, args ...interface{}) {
	klog.FatalDepth(1, fmt.Sprintf(format, args...))
}

// Fatal records a fatal log entry and terminates the program.
func (f *FileLogger) Fatal(args ...interface{}) {
	klog.FatalDepth(1, fmt.Sprint(args...))
}
