/*
Package domain contains the core vocabulary shared by every Tendril package.

It defines the identity of pipeline nodes, the change classification carried by every
produced value, and the artifacts (generated texts and diagnostics) that a pass hands to
its consumers. The package has no dependencies beyond the standard library, following
Hexagonal Architecture principles.

# Key Entities

  - NodeID: A stable handle for one node of a declared pipeline.
  - EntryState: Added, Modified, Cached or Removed, relative to the previous pass.
  - Entry: A produced value tagged with its EntryState.
  - GeneratedText / Diagnostic: Externally visible artifacts emitted by output nodes.
  - LifecycleHooks: Callbacks for observing passes, node updates and callback failures.
*/
package domain
