// Package executor runs a plan against location executables and stitches the
// location responses into a single GraphQL result.
//
// # Overview
//
// A plan is a flat list of steps. Each step names a location, the selections
// to send there, the path in the aggregate data it merges into, and the step
// it must wait for (After). The executor:
//   - Runs steps in waves. The first wave holds the steps after the root.
//     Each following wave holds the steps after a step of the previous wave
//     that actually executed.
//   - Batches all resolver steps of a wave that target the same location into
//     one sub-request.
//   - Merges location results into the aggregate data at the origins recorded
//     when the call was prepared.
//   - Rewrites location error paths into client response paths.
//   - Shapes the aggregate data to the client request unless raw output is
//     requested.
//
// # Waves
//
// Each wave goes through three phases:
//
//	A. Prepare (single goroutine)
//	   - Group the wave's steps by (location, is-resolver) in encounter order.
//	   - For every group, gather the origin objects by walking the step path
//	     through the aggregate data, flattening lists. A step with a type
//	     condition keeps only origins whose exported typename matches.
//	   - Build the document and variables. Key values are read from the
//	     origins here, so later phases never read the aggregate data.
//
//	B. Call (concurrent)
//	   - Every prepared call runs on its own goroutine, optionally limited by
//	     WithConcurrency. A call only touches its own result.
//
//	C. Merge (single goroutine)
//	   - Results are merged in group order. Steps without origins are not
//	     called and do not unlock their dependents.
//
// Mutation steps are chained by the planner, so they run one per wave and
// preserve the order of the client request.
//
// # Sub-request Documents
//
// A root-style step sends its selections as is:
//
//	query Name_3($id: ID!) { product(id: $id) { title _export_id: id } }
//
// A resolver group aliases each resolution by batch position b. A list
// resolver is called once per step with a list of keys and its results are
// matched to origins by index. A single-object resolver is called once per
// origin n:
//
//	query Name_4_5($_0_key_0: [ID!]!, $_1_0_key_0: ID!) {
//	  _0_result: products(ids: $_0_key_0) { weight }
//	  _1_0_result: user(id: $_1_0_key_0) { name }
//	}
//
// The operation name is omitted when the client operation is anonymous.
//
// # Errors
//
// Location errors become client errors. Paths that start at a batch alias are
// rewritten to the origin path; other paths are kept. An executable that
// fails reports a single error with the SUBREQUEST_FAILED code and the
// location in its extensions, and the rest of the request continues.
//
// Only plan-level failures stop execution: a location without an executable,
// a resolver version unknown to the supergraph, or more waves than steps.
// They are returned as *Error.
package executor
