// Package io reads routing jobs from TOML and writes route resolutions.
//
// # Job Format
//
// A job file holds the technology, optional router options, the existing
// geometry and the requests to route:
//
//	name = "demo"
//
//	[technology]
//	name = "n5"
//	[[technology.metals]]
//	name = "M1"
//	direction = "horizontal"
//	width = 1
//	pitch = 2
//	spacing = 1
//	# ... one [[technology.vias]] per adjacent metal pair
//
//	[router]
//	max_steps = 50000
//	global = true
//
//	[[blockages]]
//	layer = "M1"
//	rect = [0, 0, 40, 1]
//	net = "vdd"
//
//	[[requests]]
//	id = "r1"
//	net = "sig"
//	a = { rect = [0, 10, 1, 11], layers = ["M1"] }
//	b = { rect = [30, 10, 31, 11], layers = ["M2"], node = "p7" }
//
// # Blockages
//
// The kind of a blockage selects how it enters the index:
//
//   - "metal" (default): a rectangle on a metal layer
//   - "polygon": a metal polygon given by points = [[x, y], ...]
//   - "cut": a via cut; layer names the via layer
//   - "remove": cuts the rectangle out of metal already read on the layer
//
// Blockages without a net are anonymous obstructions. Named nets are created
// on first use and shared by blockages and requests.
//
// # Requests
//
// Besides the two terminals a request may carry taps
// ([[requests.taps]] with an id and a terminal), a wire width and the IDs of
// placeholder arcs and nodes to kill when the route succeeds.
//
// The [router] table is decoded lazily with [Job.DecodeRouter] so callers
// can apply it to their own options type.
package io
