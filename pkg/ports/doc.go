/*
Package ports defines the driven ports (interfaces) around the Tendril driver.

These interfaces decouple pass evaluation from external implementations, allowing the
driver to read inputs from various document sources and to publish artifacts to
different backends.

# Key Interfaces

  - InputFeed: Produces the current snapshot of raw documents (e.g., from Loam or Memory).
  - ArtifactSink: Receives the generated texts and diagnostics of every completed pass.
  - DistributedLocker: Serializes passes of one session across processes.
*/
package ports
