// Package edge owns step-edge tracking on a robot-centric elevation map.
//
// Responsibilities: 2D line geometry, step-height sampling across a
// candidate line, and the persistent edge set that is re-validated,
// merged and ranked by distance on every observation cycle.
// Key types: Tracker, Edge, Pose, Segment.
//
// Dependency rule: the package never imports the elevation grid, line
// extraction or storage packages. Grids reach it only through GridFrame
// and the HeightQuery interface, and only for the duration of one cycle.
//
// A Tracker is single-threaded: callers serialise Advance calls.
package edge
