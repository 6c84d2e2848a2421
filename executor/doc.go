// Package executor drives many iterations of one sandboxed workload,
// either sequentially on the calling goroutine or fanned out across a
// fixed-size worker pool.
//
// Both strategies run the same create-inject-evaluate-teardown cycle per
// iteration and return exactly one result per iteration, indexed by
// submission order. Iterations are independent: a failed iteration is
// captured in its result and the batch continues.
package executor
