package testutil

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/polydawn/labimg/caps"
)

type ConveyRequirement struct {
	Name      string
	Predicate func() bool
}

/*
Require that the tests are not running with the "short" flag enabled.
*/
var RequiresLongRun = ConveyRequirement{"run long tests", func() bool { return !testing.Short() }}

/*
Require that the test process is unprivileged enough that file modes are enforced on it.
*/
var RequiresFilePermsEnforced = ConveyRequirement{"file perms are enforced on us", func() bool { return !caps.Scan().IgnoresFilePerms() }}

/*
Require that a binary is on the $PATH.
*/
func RequiresBinary(name string) ConveyRequirement {
	return ConveyRequirement{
		fmt.Sprintf("binary %q on path", name),
		func() bool { _, err := exec.LookPath(name); return err == nil },
	}
}

/*
Require than an env var *not* be set.

We use this for things like `RequiresEnvBlank("LABIMG_TEST_SKIP_MKE2FS")`.
*/
func RequiresEnvBlank(key string) ConveyRequirement {
	return ConveyRequirement{
		fmt.Sprintf("env %q must not be set", key),
		func() bool { return os.Getenv(key) == "" },
	}
}

/*
Decorates a GoConvey test to check a set of `ConveyRequirement`s,
returning a dummy test func that skips (with an explanation!) if any
of the requirements are unsatisfied; if all is well, it yields
the real test function unchanged.  Provide the `...ConveyRequirement`s
first, followed by the `func()` (like the argument order in `Convey`).
*/
func Requires(items ...interface{}) func(c convey.C) {
	// parse args
	// not the most robust parsing.  just panics if there's weird stuff
	var requirements []ConveyRequirement
	for _, it := range items {
		if req, ok := it.(ConveyRequirement); ok {
			requirements = append(requirements, req)
		} else {
			break
		}
	}
	action := items[len(items)-1]
	// examine requirements
	var widest int
	for _, req := range requirements {
		if len(req.Name) > widest {
			widest = len(req.Name)
		}
	}
	// check requirements
	var requirementsListing bytes.Buffer
	var names []string
	allSat := true
	for _, req := range requirements {
		sat := req.Predicate()
		allSat = allSat && sat
		names = append(names, req.Name)
		fmt.Fprintf(&requirementsListing, "requirement %*q: %v\n", widest+2, req.Name, sat)
	}
	// act
	if allSat {
		return func(c convey.C) {
			switch action := action.(type) {
			case func():
				action()
			case func(c convey.C):
				action(c)
			}
		}
	}
	title := "Prereqs: " + strings.Join(names, ", ")
	return func(c convey.C) {
		convey.Convey(title, nil)
		c.Println()
		c.Print(requirementsListing.String())
	}
}
