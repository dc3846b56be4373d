package supervisor

import "fmt"

// State is the lifecycle state of a supervised child.
type State int

const (
	Spawning State = iota
	Running
	Terminating
	Exited
)

var stateNames = [...]string{
	Spawning:    "spawning",
	Running:     "running",
	Terminating: "terminating",
	Exited:      "exited",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}
