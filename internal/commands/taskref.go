package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode"

	"taskboard/internal/exitcode"
	"taskboard/internal/service"
	"taskboard/internal/session"
	"taskboard/internal/tasksync"
)

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// ParseTaskRef parses the 1-based task number shown by the list command.
// Exactly one all-digit argument is accepted.
func ParseTaskRef(args []string) (int, error) {
	if len(args) == 0 {
		return 0, ErrTaskRefRequired
	}
	if len(args) > 1 {
		return 0, fmt.Errorf("unexpected argument: %s", args[1])
	}
	if !isAllDigits(args[0]) {
		return 0, fmt.Errorf("invalid task reference: %s", args[0])
	}
	num, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid task reference: %s", args[0])
	}
	return num, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// taskAt switches the view to period and returns its num-th task.
func taskAt(sess *session.Session, period tasksync.Period, num int) (service.Task, error) {
	sess.Sync.SetPeriod(period)
	view := sess.Sync.View()
	if num < 1 || num > len(view) {
		return service.Task{}, fmt.Errorf("task number out of range: %d", num)
	}
	return view[num-1], nil
}

// resolveRef parses args and the period flag and looks the task up.
// It prints the error and returns a non-zero exit code on failure.
func resolveRef(sess *session.Session, periodName string, args []string, errOut io.Writer) (service.Task, int) {
	period, err := tasksync.ParsePeriod(periodName)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return service.Task{}, exitcode.UserError
	}
	num, err := ParseTaskRef(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return service.Task{}, exitcode.UserError
	}
	task, err := taskAt(sess, period, num)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return service.Task{}, exitcode.UserError
	}
	return task, exitcode.Success
}
