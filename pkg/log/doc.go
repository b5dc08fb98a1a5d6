/*
Package log provides structured logging for the storage layer using
zerolog: a package-level Logger initialized via Init, plus With*
helpers that attach structured fields (backend, replica_dir, op_kind)
to child loggers. Backends log transaction open/commit/discard at
debug level and never log task payload contents, which are opaque and
potentially sensitive.
*/
package log
