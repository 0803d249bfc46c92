package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"

	timestampFormat = "2006-01-02 15:04:05"
)

// Logrus builds component loggers sharing one level, format and output.
type Logrus struct {
	level  string
	format string
	output io.Writer
	logger *logrus.Logger
}

// NewLogrus creates a new logrus factory. Unknown levels fall back to info.
func NewLogrus(level, format string, output io.Writer) *Logrus {
	log := logrus.New()
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	if format == FormatJSON {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}
	log.SetOutput(output)
	return &Logrus{level: level, format: format, output: output, logger: log}
}

// Get returns an entry tagged with the component context
func (l *Logrus) Get(context string) *logrus.Entry {
	return l.logger.WithFields(logrus.Fields{
		"Context": context,
	})
}
