// Package tol holds the amplitude-floor epsilon shared by the engine,
// gate, and circuit packages so that identity/phase/commute tests agree.
package tol

// Eps is the default amplitude floor (REAL1_EPSILON in spec terms). Matrix
// entries, probabilities, and norms within Eps of the comparison target are
// treated as equal.
const Eps = 1e-10
