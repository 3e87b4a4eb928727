package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external dependency ytd relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// ResolveBinary returns the effective command for a configured binary: the
// configured value when set, otherwise the fallback name. Bare command names
// that resolve on PATH are expanded to their absolute path so status output
// names the file that will actually run.
func ResolveBinary(configured, fallback string) string {
	command := strings.TrimSpace(configured)
	if command == "" {
		command = strings.TrimSpace(fallback)
	}
	if command == "" {
		return ""
	}
	if !strings.ContainsRune(command, '/') {
		if resolved, err := exec.LookPath(command); err == nil {
			return resolved
		}
	}
	return command
}
