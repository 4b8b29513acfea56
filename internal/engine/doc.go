// Package engine runs query requests end to end.
//
// Find builds the plans for a request and executes them through an
// Executor:
//
//  1. The primary plan, producing the page content.
//  2. The count plan, only when the request is paginated.
//  3. One plan per distinct column, folded to value -> label.
//  4. One plan per meta column, merged to label -> aggregate.
//
// Sub-queries run sequentially on the caller's goroutine. An Engine keeps no
// per-request state and is safe for concurrent use; each Find gets its own
// request id for log correlation.
package engine
