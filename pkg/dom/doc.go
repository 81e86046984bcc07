// Package dom provides the host tree primitives the engine works on: parsing,
// cloning, selector queries, property projection, form capture and the
// node-scoped event bus. Trees are golang.org/x/net/html node graphs.
//
// Nothing in this package is safe for concurrent mutation. Callers serialize
// access through the render loop.
package dom
