/*
Package table implements the per-node state table of a pass.

A Table is an ordered sequence of slots. Each slot corresponds to one upstream entry and
holds the zero or more items that entry produced, every item tagged with a domain.EntryState.
Consumers iterate the flattened items with All; producers build a table slot by slot with a
Builder, either copying a slot forward from the previous pass or recording freshly computed
values that are diffed against the previous slot.

Tables are immutable once built. Compact drops Removed items and removed slots so that a
tombstone is visible for exactly one pass.
*/
package table
