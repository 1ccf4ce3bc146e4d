/*
Package session implements session management for incremental passes.

A session owns the DriverStateTable of one pipeline. The Manager serializes passes of the
same session (locally through ref-counted locks and, optionally, across replicas through a
distributed locker) while letting different sessions run in parallel.
*/
package session
