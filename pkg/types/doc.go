/*
Package types defines the vocabulary the storage layer persists:
TaskMap (opaque string dictionary), Operation (the four-shape mutation
record), VersionId (sync base version), and WorkingSet (the 1-indexed
slot array). These types carry no storage logic of their own — both
backends in pkg/storage serialize and interpret them identically.
*/
package types
