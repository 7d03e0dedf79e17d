// Package cqrs routes archive reads and writes between two document stores while the
// archive moves from one backend to another.
//
// # Migration Modes
//
//  1. Single Mode ([ModeSingle]): reads and writes go to the primary store. This is the
//     normal operating mode before a migration starts and after it completes.
//
//  2. Read-Only Mode ([ModeReadOnly]): writes are rejected with store.ErrReadOnly while
//     the final catch-up sync runs. Reads keep using the primary store.
//
//  3. Switching Mode ([ModeSwitching]): reads come from the secondary store while writes
//     still go to the primary. Live traffic validates the secondary before cutover.
//
//  4. Reversed Mode ([ModeReversed]): the secondary store takes reads and writes while the
//     primary is kept in sync with [CQRSStore.ReverseSyncMissedUpdates] for rollback.
//
// A typical migration from PostgreSQL to SurrealDB:
//
//  1. Run background syncs with [CQRSStore.SyncMissedUpdates] while in ModeSingle
//  2. Switch to ModeReadOnly and run a final catch-up sync
//  3. Switch to ModeSwitching to serve reads from SurrealDB
//  4. Call [CQRSStore.SwapStores] and return to ModeSingle
//
// # Synchronization
//
// Sync is timestamp based. Every archive document carries createdAt and, once edited,
// updatedAt; documents whose latest stamp falls in the [since, until) window are copied
// from the source store to the destination with Set. Deletions are not propagated, so a
// full sync (zero since) followed by a comparison is the way to reconcile deletes.
//
// # Subscriptions
//
// Subscribe attaches to the store serving reads at the time of the call. Subscriptions
// opened before a mode change keep listening to their original store until the client
// resubscribes.
package cqrs
