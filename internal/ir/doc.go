// Package ir provides the intermediate representation that the lowering
// passes operate on: layer nodes, their attributes, weight variables and the
// enclosing model graph.
//
// This package contains data types and graph plumbing only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Attribute values are a sealed union (AttrValue); nodes validate keys
//     against the schema they were bound to before accepting a write.
//   - Weight data is stored row-major in Tensor; slicing and concatenation
//     are exact so gate-wise splits can be reassembled bit for bit.
//   - The lowered IR has one canonical JSON encoding (MarshalCanonical) and
//     a digest derived from it (Digest).
package ir
