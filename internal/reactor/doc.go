// Package reactor implements well-mixed control volumes.
//
// Every reactor exposes the same capability set to the network:
//
//   - GetState / UpdateState map between the owned phase and a slice of the
//     global state vector.
//   - SetTrialState loads a slice into a private copy of the phase, so that
//     right-hand-side evaluation at rejected trial points leaves the owned
//     phase untouched.
//   - Eval fills the reactor rows of lhs ⊙ dy/dt = rhs.
//   - ComponentIndex / ComponentName name the slots of the slice.
//
// The eight gas formulations share one implementation, [GasReactor],
// parameterized by whether pressure is held, whether temperature is
// integrated directly, and whether species are tracked as kmol or as mass
// fractions. [Reservoir] has no equations, and [FlowReactor] integrates
// along distance instead of time.
package reactor
