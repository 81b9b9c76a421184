package explain

// Stage is a step of one explanation request. Stages run in order and
// none is skipped; a failure at any stage aborts the request.
type Stage int

// Pipeline stages.
const (
	Received Stage = iota
	Preprocessed
	Predicted
	BackwardDone
	MapBuilt
	Rendered
	Persisted
	Returned
)

var stageNames = [...]string{
	Received:     "received",
	Preprocessed: "preprocessed",
	Predicted:    "predicted",
	BackwardDone: "backward_done",
	MapBuilt:     "map_built",
	Rendered:     "rendered",
	Persisted:    "persisted",
	Returned:     "returned",
}

// String returns the stage name.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}
