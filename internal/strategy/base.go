package strategy

// BaseRunner supplies the identity/enablement fields shared by every
// strategy, the same role the teacher's BaseCalculator plays for
// OpportunityCalculator implementations (internal/modules/opportunities/calculators/base.go) —
// composition over the source's BaseStrategy inheritance (Design Notes).
type BaseRunner struct {
	Name     string
	Priority int
	Enabled  bool
}

func (b BaseRunner) GetName() string  { return b.Name }
func (b BaseRunner) GetPriority() int { return b.Priority }
func (b BaseRunner) IsEnabled() bool  { return b.Enabled }
