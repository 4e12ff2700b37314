// Package condor renders HTCondor submit descriptors.
package condor

import (
	"strconv"
	"strings"
)

// Submit is a vanilla-universe job description. Arguments is omitted from
// the rendered file when empty.
type Submit struct {
	InitialDir    string
	RequestMemory int
	Executable    string
	Log           string
	Output        string
	Error         string
	Arguments     string
}

// Render returns the submit file contents. Key order is fixed.
func (s Submit) Render() []byte {
	lines := []string{
		"Universe=vanilla",
		"initialdir=" + s.InitialDir,
		"getenv=True",
		"request_memory=" + strconv.Itoa(s.RequestMemory),
		"Executable=" + s.Executable,
		"Log=" + s.Log,
		"Output=" + s.Output,
		"Error=" + s.Error,
		"Notification=NEVER",
	}
	if s.Arguments != "" {
		lines = append(lines, "Arguments="+s.Arguments)
	}
	lines = append(lines, "Queue")
	return []byte(strings.Join(lines, "\n") + "\n")
}
