// Package store keeps a SQLite history of analysis runs and the proposals
// each run made.
//
// Proposals are content-addressed (see ir.ProposalID): re-running on
// unchanged source yields the same IDs, so a proposal can be traced across
// runs and writing it twice within a run is a no-op.
//
// Queries that return lists order by a stored sequence number or by run
// start time, never by rowid, so output is stable across databases.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
