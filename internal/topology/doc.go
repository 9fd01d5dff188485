// Package topology loads, validates and orders the user's intended
// CloudVision container tree.
//
// This package handles:
//   - Loading topology files written as YAML, JSON or JSONC (comments are
//     stripped with github.com/tidwall/jsonc), keeping the order in which
//     containers were declared
//   - Validating the raw document against a JSON Schema with
//     github.com/xeipuuv/gojsonschema before it is turned into typed specs
//   - Resolving a creation order in which every container comes after its
//     parent, failing on unknown parents and cycles instead of looping
//
// Nothing in this package talks to CloudVision.
package topology
