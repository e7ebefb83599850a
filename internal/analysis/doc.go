// Package analysis fuses independent signal scores for one mention into a
// single legitimacy score, priority tier, and recommendation.
//
// # Contract
//
// The Fuser:
//  1. Runs the three external scorers (sentiment, risk, technical) for a
//     mention, fanning out and joining all of them rather than failing fast.
//  2. Combines their outputs with Fuse, a pure function over fixed design
//     constants.
//  3. On any scorer failure, substitutes a neutral degraded result
//     (sentiment 0, risk unknown, legitimacy 0.5, research_required) instead
//     of propagating the error. Analysis never blocks the pipeline.
//
// # Scoring
//
// The legitimacy score starts at a neutral 0.5 prior, adds sentiment×0.2,
// a risk adjustment (+0.3 low, +0.1 medium, −0.2 high), and small increments
// for corroborating technical attributes, then clamps to [0,1].
//
// Recommendation and priority are derived first-match-wins; in particular a
// high risk level always yields "avoid" regardless of sentiment.
package analysis
