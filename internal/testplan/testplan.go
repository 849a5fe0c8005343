// Package testplan declares the boundary to the test-plan reading
// collaborator: given a JMeter .jmx file, extract the thread count and any
// data files/properties it references. Hailstorm itself never authors or
// edits test plans — it only needs to know how many threads a plan asks for
// in order to size agents. internal/testplan/jmx provides the concrete .jmx
// reader wired into cmd/hailstorm.
package testplan

// Plan is the subset of a parsed .jmx file the orchestration engine acts on.
type Plan struct {
	ThreadCount int
	DataFiles   []string
	Properties  map[string]string
}

// Parser is implemented by whatever JMeter test-plan reader is wired in;
// Hailstorm depends only on this interface, never a concrete parser.
type Parser interface {
	Parse(path string) (*Plan, error)
}
