// Package thermo provides the state-provider contracts used by reactors and
// a reference ideal-gas implementation.
//
// Two capabilities are separated by type:
//
//   - [View]: read-only access to temperature, density, pressure,
//     composition and caloric properties.
//   - [Phase]: a View that can also be set, through full atomic setters
//     only (for example [Phase.SetStateTDY]), and cloned.
//
// A reactor owns exactly one Phase and hands out Views. Kinetics and
// connectors only ever see Views, so sharing one evaluator between reactors
// cannot corrupt another reactor's state.
//
// [IdealGas] evaluates species properties from NASA 7-coefficient
// polynomials. Units are SI with kmol as the amount unit.
package thermo
