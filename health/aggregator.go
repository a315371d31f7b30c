package health

// Aggregate computes the overall status from a set of check results.
// Precedence, highest wins: Unhealthy > Degraded > Healthy. A single
// unhealthy check forces the aggregate unhealthy regardless of how many
// other checks passed; there is no weighting or quorum.
//
// An empty input yields Healthy: no failing signal exists.
func Aggregate(results []Result) Status {
	if len(results) == 0 {
		return StatusHealthy
	}

	hasUnhealthy := false
	hasDegraded := false

	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return StatusUnhealthy
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}
