package numeric

import (
	"gonum.org/v1/gonum/optimize"
)

// Converged reports whether a gonum optimize run ended on a convergence
// criterion rather than a limit or failure. A nil result never converged.
func Converged(res *optimize.Result, err error) bool {
	if res == nil || err != nil {
		return false
	}
	switch res.Status {
	case optimize.Success,
		optimize.FunctionConvergence,
		optimize.GradientThreshold,
		optimize.StepConvergence,
		optimize.FunctionThreshold,
		optimize.MethodConverge:
		return true
	default:
		return false
	}
}

// Penalty is returned by objectives for infeasible or non-finite points.
const Penalty = 1e100
