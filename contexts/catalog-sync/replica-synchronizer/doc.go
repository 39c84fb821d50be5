// Package replicasynchronizer keeps the gateway read store consistent with
// the write store it does not own.
//
// Row-level change events arrive on the change bus and are applied as
// idempotent upserts/updates/deletes against the read store. Search
// projection, cache version bumps and live-client signals run afterwards as
// best-effort side effects. A one-shot bootstrap copies every table at
// process start through the same filtering path.
package replicasynchronizer
