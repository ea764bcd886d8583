// Package qregsim simulates a quantum register behind a session device.
//
// A Device owns a register held in one of several representations: dense
// state vector, paged state vector, CHP stabilizer tableau with dense
// fallback, Schmidt-decomposed clusters, a deferred-circuit layer, and a
// decision-diagram form. Configuration flags pick and stack the layers;
// the device surface stays the same for all of them: named and raw-matrix
// gate dispatch with controls and inversion, measurement and
// postselection, probability and amplitude queries, multi-shot sampling,
// and Pauli-word expectations.
package qregsim
