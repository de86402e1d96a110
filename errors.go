package manetsim

// errors.go defines the error types raised while configuring an experiment,
// and utility functions used to validate filesystem resources named on
// the command line before any simulation activity begins

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// A ConfigurationError reports an invalid or missing experiment parameter.
// It is fatal: the experiment refuses to leave the Unconfigured state,
// and nothing is ever scheduled.
type ConfigurationError struct {
	Reason string
}

func (ce *ConfigurationError) Error() string {
	return "configuration error: " + ce.Reason
}

// ConfigurationErrorf builds a ConfigurationError from a format string
func ConfigurationErrorf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// An AddressExhaustionError reports that the number of nodes requested
// exceeds the number of host addresses the experiment's address block
// can provide.  Fatal, raised before any scheduling.
type AddressExhaustionError struct {
	Requested int
	Capacity  int
}

func (ae *AddressExhaustionError) Error() string {
	return fmt.Sprintf("address exhaustion: %d nodes requested, block holds %d hosts",
		ae.Requested, ae.Capacity)
}

// ReportErrs combines non-empty errors in a list into a single error
func ReportErrs(errs []error) error {
	errMsg := make([]string, 0)
	for _, err := range errs {
		if err != nil {
			errMsg = append(errMsg, err.Error())
		}
	}
	if len(errMsg) == 0 {
		return nil
	}

	return errors.New(strings.Join(errMsg, ","))
}

// CheckOutputFiles checks that every file name on the input list could
// be written, by testing that its directory portion exists
func CheckOutputFiles(names []string) (bool, error) {
	errs := make([]error, 0)

	for _, name := range names {
		if len(name) == 0 {
			continue
		}

		// split off the directory portion of the path.  An empty
		// directory means the working directory, which exists
		directory, _ := filepath.Split(name)
		if len(directory) == 0 {
			continue
		}
		if _, err := os.Stat(directory); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return true, nil
	}
	return false, ReportErrs(errs)
}

// CheckReadableFiles checks the existence of every file whose name is given
func CheckReadableFiles(names []string) (bool, error) {
	errs := make([]error, 0)

	for _, name := range names {
		if len(name) == 0 {
			continue
		}
		if _, err := os.Stat(name); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return true, nil
	}
	return false, ReportErrs(errs)
}
