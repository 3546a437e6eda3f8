package train

// Progress describes one completed optimizer step.
type Progress struct {
	Step         int
	TotalSteps   int
	Epoch        int
	Epochs       int
	Loss         float64
	LearningRate float64
}

// Observer receives run events. Calls come from the goroutine running the
// loop; implementations must not block for long.
type Observer interface {
	OnStart(totalSteps int)
	OnStep(p Progress)
	OnEvaluate(ev Evaluation)
	OnCheckpoint(dir string)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnStart(int)           {}
func (NopObserver) OnStep(Progress)       {}
func (NopObserver) OnEvaluate(Evaluation) {}
func (NopObserver) OnCheckpoint(string)   {}

type multiObserver []Observer

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multiObserver) OnStart(total int) {
	for _, o := range m {
		o.OnStart(total)
	}
}

func (m multiObserver) OnStep(p Progress) {
	for _, o := range m {
		o.OnStep(p)
	}
}

func (m multiObserver) OnEvaluate(ev Evaluation) {
	for _, o := range m {
		o.OnEvaluate(ev)
	}
}

func (m multiObserver) OnCheckpoint(dir string) {
	for _, o := range m {
		o.OnCheckpoint(dir)
	}
}
