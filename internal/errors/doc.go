// Package errors provides the coded error type used across the dungeon module.
//
// Every exported operation in the module returns a plain error. When the
// failure is something a caller is expected to branch on, the error is an
// *Error carrying a Code and, for traversal and streaming failures, a
// machine-readable Reason that survives wrapping.
//
// # Basic Usage
//
// Creating errors:
//
//	err := errors.NotFound("room node not found")
//	err := errors.FailedPreconditionf("room %s is not cleared", nodeID)
//
// Attaching a reason and context:
//
//	err := errors.FailedPrecondition("room is locked").
//	    WithReason("locked").
//	    WithMeta("node_id", nodeID)
//
// Wrapping errors keeps the original code:
//
//	if err := builder.Build(ctx, input); err != nil {
//	    return errors.Wrap(err, "failed to build room geometry")
//	}
//
// # Error Checking
//
//	if errors.IsNotFound(err) {
//	    // apply the documented fallback
//	}
//
//	code := errors.GetCode(err)
//	reason := errors.GetReason(err)
//
// # Validation Errors
//
// Component configs validate themselves with the builder:
//
//	vb := errors.NewValidationBuilder()
//	if c.Graph == nil {
//	    vb.RequiredField("Graph")
//	}
//	errors.ValidateBounds("Rooms", c.MinRooms, c.MaxRooms, vb)
//	return vb.Build()
//
// # Layer Guidelines
//
// Repositories return NotFound / AlreadyExists with ids in metadata.
// Services and orchestrators validate input (InvalidArgument), check
// preconditions (FailedPrecondition) and wrap collaborator errors with
// context. The CLI logs the message and the reason.
package errors
