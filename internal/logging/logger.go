package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// prodはJSON（Cloud Loggingのフィールド名）、devはテキストで出す
func New(prod bool, level string) *logrus.Logger {
	return NewWithOutput(prod, level, os.Stdout)
}

func NewWithOutput(prod bool, level string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	if prod {
		log.Formatter = &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "severity",
				logrus.FieldKeyMsg:   "message",
			},
		}
	} else {
		log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	}

	lv, err := logrus.ParseLevel(level)
	if err != nil {
		lv = logrus.InfoLevel
	}
	log.SetLevel(lv)
	log.Out = out
	return log
}

// テスト用：何も出さない
func Discard() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}
