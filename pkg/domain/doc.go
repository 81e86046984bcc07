/*
Package domain contains the core models of the Arbor engine.

It defines the directive vocabulary that the render engine recognizes on markup nodes,
the Context that directive expressions read, the navigation fragment protocol and the
error taxonomy shared by every layer. This package is kept pure and free of I/O,
following Hexagonal Architecture principles.

# Key Entities

  - Binding: A declarative attribute (@event, $prop, ^prop, :if, :for) parsed from a node.
  - Context: The ambient name/value mapping merged on every state change.
  - RouteState: The page currently shown by the router and the page to go back to.
  - LifecycleHooks: Observability callbacks emitted by the engine, loader and router.
*/
package domain
