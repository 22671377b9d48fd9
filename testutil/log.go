package testutil

import (
	"io/ioutil"

	"github.com/sirupsen/logrus"
)

// A logger that goes nowhere, for handing to code under test.
func Logger() *logrus.Logger {
	log := logrus.New()
	log.Out = ioutil.Discard
	log.Level = logrus.DebugLevel
	return log
}
