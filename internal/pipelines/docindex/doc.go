// Package docindex is the pipeline run by the tendril command.
//
// It reads a directory of markdown documents and generates one summary page per published
// document plus an index of every published document and its sections:
//
//	documents ─► pages ─► published ─► sections ─► toc ──┐
//	               │          │                           ├─► index ─► index.md
//	               │          └──────► catalog ───────────┘
//	               │          └──► related (published × catalog) ─► pages/<id>.md
//	               └──► lint ─► DOC001/DOC002 diagnostics
//
// Editing one document recomputes its page and sections. Pages that are only cached keep
// their previous summary unless the catalog changed.
package docindex
