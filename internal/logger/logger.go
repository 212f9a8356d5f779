package logger

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[37m"
)

// PrettyFormatter renders one colored line per entry: time, level, message
// and the entry's fields sorted by key.
type PrettyFormatter struct{}

func (f *PrettyFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	fmt.Fprintf(&b, "%s %s %s", e.Time.Format(time.TimeOnly), colorizeLevel(e.Level), e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(&b, " %s%s%s=%v", colorGray, k, colorReset, e.Data[k])
	}
	b.WriteByte('\n')

	return b.Bytes(), nil
}

func colorizeLevel(level logrus.Level) string {
	var color string
	var name string

	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		color = colorBlue
		name = "DEBUG"
	case logrus.InfoLevel:
		color = colorGreen
		name = "INFO"
	case logrus.WarnLevel:
		color = colorYellow
		name = "WARN"
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		color = colorRed
		name = "ERROR"
	default:
		color = colorGray
		name = level.String()
	}

	return fmt.Sprintf("%s%-5s%s", color, name, colorReset)
}

func NewLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&PrettyFormatter{})
	l.SetLevel(logrus.DebugLevel)
	return l
}
