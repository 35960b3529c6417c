package enrichment

type State int

const (
	Received State = iota
	Classified
	Queried
	Transformed
	Emitted
	Failed
)

func (s State) String() string {
	switch s {
	case Received:
		return "received"
	case Classified:
		return "classified"
	case Queried:
		return "queried"
	case Transformed:
		return "transformed"
	case Emitted:
		return "emitted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
