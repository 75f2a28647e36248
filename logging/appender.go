package logging

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormatStr is the default time format string for log appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. This is a subset of the `zapcore.Core` interface.
type Appender interface {
	// Write submits a structured log entry to the appender for logging.
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync is for signaling that any buffered logs to `Write` should be flushed. E.g: at shutdown.
	Sync() error
}

// ConsoleAppender writes tab separated, human readable lines to the underlying writer.
type ConsoleAppender struct {
	io.Writer
}

// NewWriterAppender creates a new appender that outputs to the input writer.
func NewWriterAppender(writer io.Writer) ConsoleAppender {
	return ConsoleAppender{writer}
}

// Write outputs the log entry to the underlying stream. A field encoding error is returned
// after the line has been written without its fields.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	line, encodeErr := formatLine(entry, fields)
	if _, err := fmt.Fprintln(appender.Writer, line); err != nil {
		return err
	}
	return encodeErr
}

// Sync is a no-op.
func (appender ConsoleAppender) Sync() error {
	return nil
}

// formatLine renders an entry as "time\tLEVEL\tname\tcaller\tmessage\tfields". The name and
// caller columns are omitted when unset. Fields are a single JSON object in the order given.
func formatLine(entry zapcore.Entry, fields []zapcore.Field) (string, error) {
	var sb strings.Builder
	sb.WriteString(entry.Time.Format(DefaultTimeFormatStr))
	sb.WriteByte('\t')
	sb.WriteString(strings.ToUpper(entry.Level.String()))
	if entry.LoggerName != "" {
		sb.WriteByte('\t')
		sb.WriteString(entry.LoggerName)
	}
	if entry.Caller.Defined {
		sb.WriteByte('\t')
		sb.WriteString(shortCaller(entry.Caller))
	}
	sb.WriteByte('\t')
	sb.WriteString(entry.Message)
	if len(fields) == 0 {
		return sb.String(), nil
	}

	// The entry is left empty so only the fields are encoded.
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
	buf, err := enc.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		return sb.String(), err
	}
	defer buf.Free()
	sb.WriteByte('\t')
	sb.Write(buf.Bytes())
	return sb.String(), nil
}

// shortCaller returns "package/file.go:line" from the full path runtime.Caller reports.
func shortCaller(caller zapcore.EntryCaller) string {
	file := caller.File
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		if dir := strings.LastIndexByte(file[:idx], '/'); dir >= 0 {
			file = file[dir+1:]
		}
	}
	return fmt.Sprintf("%s:%d", file, caller.Line)
}
