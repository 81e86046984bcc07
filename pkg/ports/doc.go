/*
Package ports defines the driven ports (interfaces) for the Arbor engine.

These interfaces decouple the render engine, component loader and router from
external implementations, allowing them to work with various storage backends,
markup sources and expression languages.

# Key Interfaces

  - BlobStore: Persists the serialized Context blob (memory, file, redis, bolt).
  - ContextStore: The process-wide Context with its read and merge operations.
  - Fetcher: Retrieves markup and data over the network or from bundled files.
  - Evaluator: Evaluates directive expressions against a scope.
  - ScriptRunner: Runs component scripts and exposes their lifecycle hooks.
  - Dispatcher: Delivers named signals to listeners attached to host nodes.
  - DistributedLocker: Serializes context merges across multiple instances.
*/
package ports
