package progress

// Aggregate is the coarse status derived from a set of work unit statuses.
type Aggregate string

const (
	AggregateEmpty         Aggregate = "empty"
	AggregateProcessing    Aggregate = "processing"
	AggregateCompleted     Aggregate = "completed"
	AggregatePartialFailed Aggregate = "partial_failed"
	AggregateFailed        Aggregate = "failed"
)

// Counts tallies work units by status for one parent entity.
type Counts struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// Total returns the number of units counted.
func (c Counts) Total() int {
	return c.Pending + c.Processing + c.Completed + c.Failed
}

// Compute derives the aggregate status for a set of unit counts. The order of
// the checks matters: outstanding work always dominates the aggregate, so a
// caller never reports completion while units are still pending or in flight.
func Compute(c Counts) Aggregate {
	switch {
	case c.Total() == 0:
		return AggregateEmpty
	case c.Pending > 0 || c.Processing > 0:
		return AggregateProcessing
	case c.Failed == 0:
		return AggregateCompleted
	case c.Completed > 0:
		return AggregatePartialFailed
	default:
		return AggregateFailed
	}
}
